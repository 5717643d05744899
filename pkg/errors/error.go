package errors

import (
	"bytes"
	"reflect"
	"strings"
)

// ErrorCode represents a specific error code in the system.
type ErrorCode string

const (
	// GeneralInternalServerError represents a generic internal error.
	GeneralInternalServerError ErrorCode = "general_internal_server_error"

	// ConfigValidationError represents an invalid configuration value.
	ConfigValidationError ErrorCode = "config_validation_error"

	// StreamDialError represents a failure to open the market data stream.
	StreamDialError ErrorCode = "stream_dial_error"
	// StreamHandshakeError represents a failure to send the auth or subscribe message.
	StreamHandshakeError ErrorCode = "stream_handshake_error"
	// StreamReadError represents an unrecoverable read failure on an open stream.
	StreamReadError ErrorCode = "stream_read_error"
	// StreamAuthError represents an authentication rejection reported by the feed.
	StreamAuthError ErrorCode = "stream_auth_error"
	// StreamMalformedFrame represents a frame that is not valid structured data.
	StreamMalformedFrame ErrorCode = "stream_malformed_frame"

	// QueueClosedError represents a push on a queue that was already closed.
	QueueClosedError ErrorCode = "queue_closed_error"

	// PublishMarshalError represents a bar that could not be serialized.
	PublishMarshalError ErrorCode = "publish_marshal_error"

	// RedisConfigError represents an error when the Redis configuration is invalid or nil.
	RedisConfigError ErrorCode = "redis_config_error"
	// RedisConnectionError represents an error when connecting to Redis.
	RedisConnectionError ErrorCode = "redis_connection_error"
	// RedisDisconnectionError represents an error when disconnecting from Redis.
	RedisDisconnectionError ErrorCode = "redis_disconnection_error"
	// RedisPingError represents an error when pinging Redis.
	RedisPingError ErrorCode = "redis_pinging_error"
	// RedisSubscribeError represents an error when subscribing to channels in Redis.
	RedisSubscribeError ErrorCode = "redis_subscribe_error"
	// RedisPublishError represents an error when publishing messages to channels in Redis.
	RedisPublishError ErrorCode = "redis_publish_error"

	// KafkaWriteError represents an error when writing messages to Kafka.
	KafkaWriteError ErrorCode = "kafka_write_error"
)

// Severity represents the severity level of an error.
type Severity string

const (
	// SeverityCritical indicates an error that stops the pipeline.
	SeverityCritical Severity = "critical"
	// SeverityLow indicates an error that is recovered locally.
	SeverityLow Severity = "low"
)

// BaseError is an `error` type containing an array of ErrorDetails.
type BaseError struct {
	details []*ErrorDetails
}

// NewBaseError create BaseError with ErrorDetails
func NewBaseError(details ...*ErrorDetails) *BaseError {
	return &BaseError{details: details}
}

// AddErrorDetails add more ErrorDetails to BaseError
func (b *BaseError) AddErrorDetails(errors ...*ErrorDetails) {
	b.details = append(b.details, errors...)
}

// GetDetails get array ErrorDetails on BaseError
func (b *BaseError) GetDetails() []*ErrorDetails {
	return b.details
}

// HasDetails reports whether any ErrorDetails were collected.
func (b *BaseError) HasDetails() bool {
	return len(b.details) > 0
}

// Error implement error interface
func (b *BaseError) Error() string {
	buff := bytes.NewBufferString("")

	buff.WriteString("Error on\n")
	for _, err := range b.details {
		buff.WriteString("code: ")
		buff.WriteString(err.Code)
		buff.WriteString("; error: ")
		buff.WriteString(err.Error())
		buff.WriteString("; field: ")
		buff.WriteString(err.Field)
		buff.WriteString("; object: ")
		if err.Object != nil {
			buff.WriteString(reflect.TypeOf(err.Object).String())
		}
		buff.WriteString("\n")
	}

	return strings.TrimSpace(buff.String())
}

// IsAnyCodeEqual check if any ErrorDetails code is equal with given code
func (b *BaseError) IsAnyCodeEqual(code string) bool {
	for _, d := range b.GetDetails() {
		if d.Code == code {
			return true
		}
	}
	return false
}

// FieldNames returns the fields of all collected ErrorDetails in order.
func (b *BaseError) FieldNames() []string {
	fields := make([]string, 0, len(b.details))
	for _, d := range b.details {
		fields = append(fields, d.Field)
	}
	return fields
}
