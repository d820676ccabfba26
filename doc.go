// Package armlink is a terminal console for a 4-DOF robot arm controller
// reachable over WebSocket, plus a reference controller to run against.
//
// The console keeps a local model of the arm: the operator's target pose,
// the encoder readings the controller reports, an emergency stop latch and
// the connection state. Target changes are sent at most every 50ms, the
// link is probed for latency every two seconds, and when the arm comes to
// rest the target snaps to the measured pose.
//
// # Installation
//
//	go install github.com/gwillem/armlink/cmd/armlink@latest
//
// # Usage
//
// Run a simulated controller and drive it:
//
//	armlink serve --sim
//	armlink dashboard --address 127.0.0.1 --connect
//
// With a Feetech STS arm on a serial port:
//
//	armlink ports --save
//	armlink calibrate
//	armlink serve
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/armlink: CLI with dashboard, serve, ports and calibrate commands
//   - pkg/robot: Joint model, settings, configuration and servo calibration
//   - pkg/protocol: JSON frames exchanged with the controller
//   - pkg/throttle: Leading/trailing rate limiter for move commands
//   - pkg/link: WebSocket connection with liveness probing
//   - pkg/telemetry: Encoder state and target resync
//   - pkg/session: Console state shared with the dashboard
//   - pkg/controller: Reference controller (simulated or servo backed)
package armlink
