package notify

import (
	"crypto/md5"
	"encoding/hex"
)

// Channel names ride on Postgres LISTEN/NOTIFY, whose identifiers are capped
// at 63 bytes. A fixed prefix plus 16 hex chars of an md5 digest keeps names
// at 27 chars: deterministic, collision-resistant, and well under the cap.
const (
	userChannelPrefix   = "wallie_usr_"
	threadChannelPrefix = "wallie_msg_"

	digestHexLen = 16
)

// UserChannel returns the per-user notification channel for userID.
func UserChannel(userID string) string {
	return hashedChannel(userChannelPrefix, userID)
}

// ThreadChannel returns the notification channel scoped to one user within
// one thread.
func ThreadChannel(userID, threadID string) string {
	return hashedChannel(threadChannelPrefix, userID+"_"+threadID)
}

func hashedChannel(prefix, input string) string {
	sum := md5.Sum([]byte(input))
	return prefix + hex.EncodeToString(sum[:])[:digestHexLen]
}
