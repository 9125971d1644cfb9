package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"radiobot/datastore"
)

const commandHistoryLimit int = 20

type Storage struct {
	ds *datastore.DataStore
}

type CommandHistoryRecord struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Param       string    `json:"param"`
	Datetime    time.Time `json:"datetime"`
}

// Record is the per-guild settings blob.
type Record struct {
	DJRoleID            string                 `json:"dj_role_id,omitempty"`
	DefaultVolume       int                    `json:"default_volume,omitempty"`
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// Helper function to get or create a Record for a guild
func (s *Storage) getOrCreateGuildRecord(guildID string) (*Record, error) {
	data, exists := s.ds.Get(guildID)
	if !exists {
		newRecord := &Record{
			CommandsHistoryList: []CommandHistoryRecord{},
		}
		s.ds.Add(guildID, newRecord)
		return newRecord, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling data: %w", err)
	}

	var record Record
	err = json.Unmarshal(jsonData, &record)
	if err != nil {
		return nil, fmt.Errorf("error unmarshalling to *Record: %w", err)
	}

	if len(record.CommandsHistoryList) > commandHistoryLimit {
		record.CommandsHistoryList = record.CommandsHistoryList[len(record.CommandsHistoryList)-commandHistoryLimit:]
	}

	return &record, nil
}

// AppendCommandToHistory appends a command history record for a guild
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	record.CommandsHistoryList = append(record.CommandsHistoryList, command)
	s.ds.Add(guildID, record)
	return nil
}

func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}

	return record.CommandsHistoryList, nil
}

// SetDJRole stores the role allowed to drive playback. An empty roleID
// clears the restriction.
func (s *Storage) SetDJRole(guildID, roleID string) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	record.DJRoleID = roleID
	s.ds.Add(guildID, record)
	return nil
}

// GetDJRole returns the configured DJ role ID, empty when unset.
func (s *Storage) GetDJRole(guildID string) (string, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return "", err
	}
	return record.DJRoleID, nil
}

// SetDefaultVolume stores the volume new playback sessions start with.
func (s *Storage) SetDefaultVolume(guildID string, volume int) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	record.DefaultVolume = volume
	s.ds.Add(guildID, record)
	return nil
}

// DefaultVolume returns the stored startup volume for a guild. The
// second return is false when the guild has no stored preference.
func (s *Storage) DefaultVolume(guildID string) (int, bool) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil || record.DefaultVolume == 0 {
		return 0, false
	}
	return record.DefaultVolume, true
}

// Uncache drops the guild record entirely.
func (s *Storage) Uncache(guildID string) {
	s.ds.Delete(guildID)
}

// GuildIDs returns every guild with a stored record.
func (s *Storage) GuildIDs() []string {
	return s.ds.Keys()
}
