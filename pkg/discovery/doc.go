// Package discovery implements mDNS/DNS-SD discovery for telemetry producers.
//
// Producers advertise a single service type, _telemon._tcp, whose port is
// the HTTP listener serving the websocket endpoint. The instance name is a
// user-friendly producer name.
//
// # TXT Records
//
//   - ver: feed protocol version ("major.minor"), required
//   - ws:  websocket path on the advertised port, required
//   - tcp: port of the length-prefixed stream listener, optional
//   - dev: number of simulated devices, optional
//   - reg: registers per device, optional
//
// Consumers browse for the service type and receive one ProducerService per
// instance name. Addresses reported on several interfaces are merged into
// that single entry. Producers advertising an incompatible major version
// are ignored.
package discovery
