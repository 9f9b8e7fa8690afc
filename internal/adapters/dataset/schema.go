package dataset

// Artifact names one fused CSV file of a session.
type Artifact string

// Fused dataset artifacts.
const (
	Users       Artifact = "users"
	Touch       Artifact = "touch"
	Device      Artifact = "device"
	DeviceTouch Artifact = "device_touch"
	Stats       Artifact = "stats"
)

// Artifacts lists every artifact in write order.
var Artifacts = []Artifact{Users, Touch, Device, DeviceTouch, Stats}

// Columns is the header of each artifact.
var Columns = map[Artifact][]string{
	Users:       {"timestamp", "id", "pos", "rot"},
	Touch:       {"timestamp", "pos", "userid", "injected", "type"},
	Device:      {"timestamp", "userid", "screenPos", "spacePos", "orientation"},
	DeviceTouch: {"timestamp", "userid", "screenPos", "type"},
	Stats:       {"userid", "touched", "injected", "touchedDown", "injectedDown", "walkedUser", "walkedDevice", "wallDistance", "wallShare", "userDistance"},
}
