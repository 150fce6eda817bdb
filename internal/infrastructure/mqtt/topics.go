package mqtt

// Relay topic layout.
//
// Direction names are from the aircraft's point of view: "to_plane" topics
// carry ground-originated traffic the relay forwards onto a radio link,
// "from_plane" topics carry aircraft-originated traffic the relay publishes
// for ground systems.
//
// The SatCom from-plane topic is published retained so a ground client that
// connects mid-flight still sees the aircraft's last satellite report; the
// relay clears it with a retained empty payload once the aircraft has been
// silent past the configured Iridium timeout.
const (
	// TopicLTEToPlane carries ground→aircraft traffic for the LTE link.
	TopicLTEToPlane = "telem/LTE_to_plane"

	// TopicLTEFromPlane carries aircraft→ground traffic received over LTE.
	// Published without the retained flag: LTE traffic is a live stream.
	TopicLTEFromPlane = "telem/LTE_from_plane"

	// TopicSatComToPlane carries ground→aircraft traffic for the Iridium link.
	TopicSatComToPlane = "telem/SatCom_to_plane"

	// TopicSatComFromPlane carries aircraft→ground traffic received over
	// Iridium. Published retained (last-known satellite status).
	TopicSatComFromPlane = "telem/SatCom_from_plane"

	// TopicRelayStatus carries the relay's own online/offline status,
	// including the Last Will message on unexpected disconnect.
	TopicRelayStatus = "telem/relay/status"
)
