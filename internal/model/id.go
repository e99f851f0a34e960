package model

import "github.com/google/uuid"

// ValidateID はidがUUID形式であることを検証する。
// 不正な場合はresourceを含むInvalidInputエラーを返す。
func ValidateID(resource, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return NewInvalidIDError(resource)
	}
	return nil
}
