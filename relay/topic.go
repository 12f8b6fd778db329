package relay

import "encoding/hex"

// UserTopic derives the self-channel topic for a public key. The relay
// addresses each client by the hex encoding of its public key, so the
// same key always yields the same topic. An absent key yields the empty
// string, which is never a valid topic.
func UserTopic(publicKey []byte) string {
	if len(publicKey) == 0 {
		return ""
	}
	return "user:" + hex.EncodeToString(publicKey)
}

// RoomTopic derives a room-channel topic. Room channels compose the room
// name with the caller's own public key so the relay can attribute
// membership.
func RoomTopic(name string, publicKey []byte) string {
	if len(publicKey) == 0 || name == "" {
		return ""
	}
	return "room:" + name + ",user:" + hex.EncodeToString(publicKey)
}
