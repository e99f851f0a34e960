package model

import "errors"

// AsAPIError はerrチェーンからAPIErrorを取り出す。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// OutcomeOf は監査ログ用に操作結果を表す値を返す。
func OutcomeOf(err error) AuditOutcome {
	if err == nil {
		return AuditOutcomeOK
	}
	if apiErr, ok := AsAPIError(err); ok {
		return AuditOutcome(apiErr.Code)
	}
	return AuditOutcome("INTERNAL_ERROR")
}
