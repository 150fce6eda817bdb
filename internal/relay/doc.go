// Package relay composes the three links into a store-and-forward bridge.
//
// Each link owns its transport; the relay only wires their callbacks
// together and orders startup and shutdown. Keeping the composition free
// of transport logic means a failure on one route (a dead LTE peer, a
// satellite gateway outage, a broker hiccup) never blocks or corrupts
// traffic on the others.
package relay
