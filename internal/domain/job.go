package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type JobType string

const (
	JobTrade          JobType = "trade"
	JobAnalyzePhoto   JobType = "analyze-photo"
	JobAdminService   JobType = "admin-service"
	JobUserService    JobType = "user-service"
	JobAdminBroadcast JobType = "admin-broadcast"
)

var JobTypes = []JobType{
	JobTrade,
	JobAnalyzePhoto,
	JobAdminService,
	JobUserService,
	JobAdminBroadcast,
}

func (t JobType) Valid() bool {
	for _, known := range JobTypes {
		if t == known {
			return true
		}
	}
	return false
}

func ParseJobType(s string) (JobType, error) {
	t := JobType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedJob, s)
	}
	return t, nil
}

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobClaimed   JobStatus = "claimed"
	JobRetrying  JobStatus = "retrying"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobPayload is implemented only by the payload variants below.
type JobPayload interface {
	JobType() JobType
	isJobPayload()
}

type TradePayload struct {
	ChatID int64  `json:"chatId"`
	Text   string `json:"text"`
}

// PhotoPayload names the screenshot by Telegram file id, a plain URL or a
// local path. Telegram download URLs embed the bot token and are never stored.
type PhotoPayload struct {
	ChatID   int64  `json:"chatId"`
	FileID   string `json:"fileId,omitempty"`
	FileURL  string `json:"fileUrl,omitempty"`
	FilePath string `json:"filePath,omitempty"`
}

type AdminServicePayload struct {
	ChatID  int64  `json:"chatId"`
	Service string `json:"service"`
}

type UserServicePayload struct {
	ChatID  int64  `json:"chatId"`
	Service string `json:"service"`
}

// BroadcastPayload fans one message out to every chat. Text, when set, is sent
// as is; otherwise the named admin service produces the message.
type BroadcastPayload struct {
	ChatIDs []int64 `json:"chatIds"`
	Service string  `json:"service,omitempty"`
	Text    string  `json:"text,omitempty"`
}

func (TradePayload) JobType() JobType        { return JobTrade }
func (PhotoPayload) JobType() JobType        { return JobAnalyzePhoto }
func (AdminServicePayload) JobType() JobType { return JobAdminService }
func (UserServicePayload) JobType() JobType  { return JobUserService }
func (BroadcastPayload) JobType() JobType    { return JobAdminBroadcast }

func (TradePayload) isJobPayload()        {}
func (PhotoPayload) isJobPayload()        {}
func (AdminServicePayload) isJobPayload() {}
func (UserServicePayload) isJobPayload()  {}
func (BroadcastPayload) isJobPayload()    {}

// PayloadChatID returns the originating chat, if the payload has one.
func PayloadChatID(p JobPayload) (int64, bool) {
	switch v := p.(type) {
	case TradePayload:
		return v.ChatID, true
	case PhotoPayload:
		return v.ChatID, true
	case AdminServicePayload:
		return v.ChatID, true
	case UserServicePayload:
		return v.ChatID, true
	case BroadcastPayload:
		return 0, false
	}
	return 0, false
}

func EncodePayload(p JobPayload) (JobType, []byte, error) {
	if p == nil {
		return "", nil, fmt.Errorf("%w: nil payload", ErrUnsupportedJob)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s payload: %w", p.JobType(), err)
	}
	return p.JobType(), raw, nil
}

func DecodePayload(t JobType, raw []byte) (JobPayload, error) {
	switch t {
	case JobTrade:
		var p TradePayload
		if err := decodeInto(t, raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case JobAnalyzePhoto:
		var p PhotoPayload
		if err := decodeInto(t, raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case JobAdminService:
		var p AdminServicePayload
		if err := decodeInto(t, raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case JobUserService:
		var p UserServicePayload
		if err := decodeInto(t, raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case JobAdminBroadcast:
		var p BroadcastPayload
		if err := decodeInto(t, raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedJob, t)
}

func decodeInto(t JobType, raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", t, err)
	}
	return nil
}

type Job struct {
	ID          string     `json:"id"`
	Type        JobType    `json:"type"`
	Payload     JobPayload `json:"payload"`
	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastError   string     `json:"last_error,omitempty"`
}

func (j *Job) ChatID() (int64, bool) {
	if j == nil || j.Payload == nil {
		return 0, false
	}
	return PayloadChatID(j.Payload)
}
