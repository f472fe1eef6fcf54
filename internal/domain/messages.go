package domain

import "errors"

// User-facing notices. Internal error text is never sent to chat.
const (
	MsgInvalidTrade       = "⚠️ Invalid trade format. Example: EUR/USD 1h"
	MsgInsufficientData   = "⚠️ Not enough market data for this pair and timeframe. Try another timeframe."
	MsgUnreadableChart    = "⚠️ Unable to extract valid trade data from screenshot."
	MsgSignalFailedTrade  = "⚠️ Signal generation failed. Please try another pair or timeframe."
	MsgSignalFailedPhoto  = "⚠️ Signal generation failed. Try another screenshot."
	MsgUnknownService     = "⚠️ Unknown service. Send /service help for the list."
	MsgServiceUnavailable = "⚠️ Our analysis service is temporarily unavailable.\nPlease try again in a few minutes. Thank you for your patience."
)

// NoticeFor maps a job failure to the fixed notice for the job's chat.
// The boolean is false when nothing should be sent.
func NoticeFor(t JobType, err error) (string, bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, ErrUnsupportedJob):
		return "", false
	case errors.Is(err, ErrInsufficientData):
		return MsgInsufficientData, true
	case errors.Is(err, ErrSignalRejected):
		if t == JobAnalyzePhoto {
			return MsgSignalFailedPhoto, true
		}
		return MsgSignalFailedTrade, true
	case errors.Is(err, ErrInvalidInput):
		switch t {
		case JobTrade:
			return MsgInvalidTrade, true
		case JobAnalyzePhoto:
			return MsgUnreadableChart, true
		case JobAdminService, JobUserService:
			return MsgUnknownService, true
		}
	}
	return MsgServiceUnavailable, true
}
