// Package broker implements the ground side of the relay: telemetry topics
// on the MQTT broker.
//
// Topic naming is aircraft-centric. to_plane topics carry ground commands
// toward the aircraft, from_plane topics carry aircraft telemetry toward
// the ground:
//
//	telem/LTE_to_plane       ground → aircraft, via LTE
//	telem/LTE_from_plane     aircraft → ground, via LTE (not retained)
//	telem/SatCom_to_plane    ground → aircraft, via Iridium
//	telem/SatCom_from_plane  aircraft → ground, via Iridium (retained)
//
// SatCom messages are rare and expensive, so the latest one is retained
// for late-joining ground stations. A retained message that outlives the
// aircraft's satellite silence timeout is cleared with a retained null
// payload, so operators never act on position data from an aircraft that
// stopped reporting ten minutes ago.
package broker
