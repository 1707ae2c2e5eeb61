// Package commands provides the command bodies shipped with the rcq binary.
// Real deployments inject their own queue.CommandBody (a device driver); these
// bodies exist to run and test the service without hardware.
//
//   - echo: answers with the input
//   - ping: answers PING with PONG
//
// Every body can be delayed to simulate slow devices.
package commands
