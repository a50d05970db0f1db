// Package mocks provides shared test doubles for the service interfaces the
// HTTP layer depends on.
//
// MockJWTService uses function fields with default return values.
// TestifyMockTaskService is built on testify/mock so tests can assert the
// exact arguments a handler passed:
//
//	svc := &mocks.TestifyMockTaskService{}
//	svc.On("CancelTask", mock.Anything, admin, int64(3)).Return(nil)
package mocks
