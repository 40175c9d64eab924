package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:student:%d", studentID)
}

// AttemptStartKey returns the cache key for a student's attempt start time
func (r *CacheKeyStruct) AttemptStartKey(testID string, studentID int) string {
	return fmt.Sprintf("student:%d:test:%s:attempt_start", studentID, testID)
}

// StudentSelectionsKey returns the cache key for a student's answer selections
func (r *CacheKeyStruct) StudentSelectionsKey(testID string, studentID int) string {
	return fmt.Sprintf("student:%d:test:%s:selections", studentID, testID)
}

// TestPayloadKey returns the cache key for a test's canonical payload
func (r *CacheKeyStruct) TestPayloadKey(testID string) string {
	return fmt.Sprintf("test:%s:payload", testID)
}

// TestDurationKey returns the cache key for a test's duration
func (r *CacheKeyStruct) TestDurationKey(testID string) string {
	return fmt.Sprintf("test:%s:duration", testID)
}

// StudentActiveTestKey returns the cache key for a student's currently active test
func (r *CacheKeyStruct) StudentActiveTestKey(studentID int) string {
	return fmt.Sprintf("student:%d:active_test", studentID)
}

var CacheKey = NewCacheKeyStruct()
