package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contextads/chat-service/internal/domain/models"
)

func TestNewMessage(t *testing.T) {
	msg := models.NewMessage(models.RoleUser, "hello")

	require.NotNil(t, msg)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, models.RoleUser, msg.Role)
	assert.Equal(t, "hello", msg.Content)
	assert.False(t, msg.Timestamp.IsZero())
	assert.NotNil(t, msg.Metadata)
}

func TestMessageConversationID(t *testing.T) {
	msg := models.NewMessage(models.RoleUser, "hello")
	assert.Empty(t, msg.ConversationID())

	msg.Metadata[models.MetaConversationID] = "abc-123"
	assert.Equal(t, "abc-123", msg.ConversationID())

	// Non-string values are ignored.
	msg.Metadata[models.MetaConversationID] = 42
	assert.Empty(t, msg.ConversationID())

	var bare models.Message
	assert.Empty(t, bare.ConversationID())
}

func TestMessageHasContent(t *testing.T) {
	assert.True(t, models.NewMessage(models.RoleUser, "hi").HasContent())
	assert.False(t, models.NewMessage(models.RoleUser, "").HasContent())
	assert.False(t, models.NewMessage(models.RoleUser, "   \t\n").HasContent())
}

func TestRoleValid(t *testing.T) {
	assert.True(t, models.RoleUser.Valid())
	assert.True(t, models.RoleAssistant.Valid())
	assert.True(t, models.RoleSystem.Valid())
	assert.False(t, models.Role("moderator").Valid())
	assert.False(t, models.Role("").Valid())
}

func TestIsCanonicalUUID(t *testing.T) {
	assert.True(t, models.IsCanonicalUUID("d64a4899-20e4-4ecd-a53e-057aceed54cf"))
	assert.True(t, models.IsCanonicalUUID("D64A4899-20E4-4ECD-A53E-057ACEED54CF"))

	assert.False(t, models.IsCanonicalUUID(""))
	assert.False(t, models.IsCanonicalUUID("not-a-uuid"))
	assert.False(t, models.IsCanonicalUUID("local-1712345678-abcd1234"))
	// Unbraced canonical form only.
	assert.False(t, models.IsCanonicalUUID("{d64a4899-20e4-4ecd-a53e-057aceed54cf}"))
	assert.False(t, models.IsCanonicalUUID("d64a489920e44ecda53e057aceed54cf"))
}

func TestAdTypeValid(t *testing.T) {
	for _, adType := range []models.AdType{
		models.AdTypeHyperlink,
		models.AdTypePopup,
		models.AdTypeBanner,
		models.AdTypeVideo,
		models.AdTypeThinking,
	} {
		assert.True(t, adType.Valid(), string(adType))
	}
	assert.False(t, models.AdType("interstitial").Valid())
}

func TestSessionSupportsAdSearch(t *testing.T) {
	sess := models.Session{
		ConversationID:     "d64a4899-20e4-4ecd-a53e-057aceed54cf",
		BackendInitialized: true,
	}
	assert.True(t, sess.SupportsAdSearch())

	local := models.Session{
		ConversationID:     "local-1712345678-abcd1234",
		BackendInitialized: false,
	}
	assert.False(t, local.SupportsAdSearch())

	// Backend flag alone is not enough without a canonical id.
	odd := models.Session{
		ConversationID:     "local-1712345678-abcd1234",
		BackendInitialized: true,
	}
	assert.False(t, odd.SupportsAdSearch())
}

func TestNewResponse(t *testing.T) {
	resp := models.NewResponse("agent", "conv-1", "answer")

	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "agent", resp.Source)
	assert.Equal(t, "conv-1", resp.ConversationID)
	assert.Equal(t, "answer", resp.Content)
}
