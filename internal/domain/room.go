package domain

type RoomName string

// Room is the room's meta-data. Membership and host state live in the
// core registry; SharedFile is the opaque reference to the room's
// uploaded audio, empty when none has been shared.
type Room struct {
	Name       RoomName
	SharedFile string
}
