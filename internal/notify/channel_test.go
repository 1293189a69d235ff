package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelNaming(t *testing.T) {
	userID := "8d4c0a1e-4f6b-4c2d-9a1e-0b3f5d7c9e11"
	threadID := "f2a7b6c5-d4e3-42f1-8a9b-7c6d5e4f3a21"

	t.Run("Deterministic", func(t *testing.T) {
		assert.Equal(t, UserChannel(userID), UserChannel(userID))
		assert.Equal(t, ThreadChannel(userID, threadID), ThreadChannel(userID, threadID))
	})

	t.Run("DistinctInputsDiffer", func(t *testing.T) {
		assert.NotEqual(t, UserChannel(userID), UserChannel("someone-else"))
		assert.NotEqual(t, ThreadChannel(userID, threadID), ThreadChannel(userID, "other-thread"))
		assert.NotEqual(t, ThreadChannel(userID, threadID), ThreadChannel("someone-else", threadID))
	})

	t.Run("KindsAreDisambiguated", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(UserChannel(userID), "wallie_usr_"))
		assert.True(t, strings.HasPrefix(ThreadChannel(userID, threadID), "wallie_msg_"))
		assert.NotEqual(t, UserChannel(userID), ThreadChannel(userID, threadID))
	})

	t.Run("UnderPostgresIdentifierLimit", func(t *testing.T) {
		// prefix (11) + hex digest (16) = 27, well under the 63-byte cap
		assert.Len(t, UserChannel(userID), 27)
		assert.Len(t, ThreadChannel(userID, threadID), 27)
		assert.LessOrEqual(t, len(UserChannel(strings.Repeat("x", 4096))), 63)
	})
}
