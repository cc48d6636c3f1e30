package storage

import (
	"encoding/json"

	"github.com/Shopify/sarama"
	"github.com/practice-sem-2/chat-service/internal/models"
)

// UpdatesStorage publishes domain updates to a Kafka topic as JSON, keyed
// by chat id so all updates of one chat land on one partition. With a nil
// producer every publish is a no-op, which is how deployments without a
// broker run.
type UpdatesStorage struct {
	cfg      *UpdatesStoreConfig
	producer sarama.SyncProducer
}

type UpdatesStoreConfig struct {
	UpdatesTopic string
}

func NewUpdatesStore(p sarama.SyncProducer, cfg *UpdatesStoreConfig) *UpdatesStorage {
	return &UpdatesStorage{
		producer: p,
		cfg:      cfg,
	}
}

type updateEnvelope struct {
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload"`
}

func (s *UpdatesStorage) putUpdate(key string, kind string, payload interface{}) error {
	if s.producer == nil {
		return nil
	}

	bytes, err := json.Marshal(updateEnvelope{
		Kind:    kind,
		Payload: payload,
	})
	if err != nil {
		return err
	}

	_, _, err = s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.cfg.UpdatesTopic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(bytes),
	})

	return err
}

func (s *UpdatesStorage) ChatCreated(update *models.ChatCreated) error {
	return s.putUpdate(update.ChatID, "chat_created", update)
}

func (s *UpdatesStorage) ChatDeleted(update *models.ChatDeleted) error {
	return s.putUpdate(update.ChatID, "chat_deleted", update)
}

func (s *UpdatesStorage) MembersAdded(update *models.MembersAdded) error {
	return s.putUpdate(update.ChatID, "members_added", update)
}

func (s *UpdatesStorage) MembersRemoved(update *models.MembersRemoved) error {
	return s.putUpdate(update.ChatID, "members_removed", update)
}

func (s *UpdatesStorage) TitleUpdated(update *models.TitleUpdated) error {
	return s.putUpdate(update.ChatID, "title_updated", update)
}

func (s *UpdatesStorage) MessagesSent(update *models.MessagesSent) error {
	return s.putUpdate(update.ChatID, "messages_sent", update)
}
