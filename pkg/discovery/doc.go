// Package discovery advertises a table server over mDNS.
//
// Clients on the local network browse for the _tablewire._tcp service
// and read the protocol version from the TXT records before dialing.
// Advertisement is optional; a server without it is reachable by
// address as usual.
package discovery
