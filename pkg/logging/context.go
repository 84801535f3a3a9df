package logging

import (
	"context"
)

const (
	MessageIDKey   = "message_id"
	EnvelopeIDKey  = "envelope_id"
	ServiceNameKey = "service_name"
)

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

func WithEnvelopeID(ctx context.Context, envelopeID string) context.Context {
	return context.WithValue(ctx, EnvelopeIDKey, envelopeID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetMessageID(ctx context.Context) string {
	if messageID, ok := ctx.Value(MessageIDKey).(string); ok {
		return messageID
	}
	return ""
}

func GetEnvelopeID(ctx context.Context) string {
	if envelopeID, ok := ctx.Value(EnvelopeIDKey).(string); ok {
		return envelopeID
	}
	return ""
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 6)

	if messageID := GetMessageID(ctx); messageID != "" {
		fields = append(fields, "message_id", messageID)
	}

	if envelopeID := GetEnvelopeID(ctx); envelopeID != "" {
		fields = append(fields, "envelope_id", envelopeID)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}

	return fields
}
