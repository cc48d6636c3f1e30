package storage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Shopify/sarama/mocks"
	"github.com/practice-sem-2/chat-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_UpdatesStorage_MembersAdded(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var envelope updateEnvelope
		if err := json.Unmarshal(value, &envelope); err != nil {
			return err
		}
		assert.Equal(t, "members_added", envelope.Kind)
		return nil
	})

	store := NewUpdatesStore(producer, &UpdatesStoreConfig{UpdatesTopic: "chat-updates"})
	err := store.MembersAdded(&models.MembersAdded{
		UpdateMeta: models.UpdateMeta{
			Timestamp: time.Now().UTC(),
			Audience: []string{
				"253becbb-76b1-4471-9ff3-529462925899",
				"1230cadb-899e-4710-8cdd-0a2f83882712",
			},
		},
		ChatID:  "256e3354-8263-4913-8bdd-345bd04d962e",
		By:      "253becbb-76b1-4471-9ff3-529462925899",
		Members: []string{"1230cadb-899e-4710-8cdd-0a2f83882712"},
	})
	assert.NoError(t, err, "update should be pushed without error")

	require.NoError(t, producer.Close())
}

func Test_UpdatesStorage_MessagesSent(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var envelope struct {
			Kind    string              `json:"kind"`
			Payload models.MessagesSent `json:"payload"`
		}
		if err := json.Unmarshal(value, &envelope); err != nil {
			return err
		}
		assert.Equal(t, "messages_sent", envelope.Kind)
		assert.Equal(t, "256e3354-8263-4913-8bdd-345bd04d962e", envelope.Payload.ChatID)
		assert.Len(t, envelope.Payload.Messages, 1)
		return nil
	})

	store := NewUpdatesStore(producer, &UpdatesStoreConfig{UpdatesTopic: "chat-updates"})
	err := store.MessagesSent(&models.MessagesSent{
		UpdateMeta: models.UpdateMeta{Timestamp: time.Now().UTC()},
		ChatID:     "256e3354-8263-4913-8bdd-345bd04d962e",
		Messages: []models.Message{{
			MessageID: 1,
			ChatID:    "256e3354-8263-4913-8bdd-345bd04d962e",
			SenderID:  "253becbb-76b1-4471-9ff3-529462925899",
			Type:      models.MessageTypeStandard,
			Body:      models.MessageBody{Text: "hello"},
		}},
	})
	assert.NoError(t, err, "update should be pushed without error")

	require.NoError(t, producer.Close())
}

func Test_UpdatesStorage_NilProducerIsNoop(t *testing.T) {
	store := NewUpdatesStore(nil, nil)

	err := store.ChatCreated(&models.ChatCreated{ChatID: "256e3354-8263-4913-8bdd-345bd04d962e"})
	assert.NoError(t, err, "publishing without a broker is a no-op")
}
