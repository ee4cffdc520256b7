// Package event decodes Cloud Storage upload notifications into the location
// of the uploaded object.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dvloznov/billwatch/internal/gcs"
)

const (
	// FinalizedType is the CloudEvent type of a completed object upload.
	FinalizedType = "google.cloud.storage.object.v1.finalized"

	// PubSubFinalize is the Pub/Sub notification eventType of a completed upload.
	PubSubFinalize = "OBJECT_FINALIZE"

	ceTypeHeader = "Ce-Type"
)

// ErrIgnored is returned for well-formed notifications that do not describe
// a new billing file (other event types, folder placeholders).
var ErrIgnored = errors.New("event ignored")

// StorageObject is the payload of a Cloud Storage object event.
type StorageObject struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

type cloudEvent struct {
	SpecVersion string         `json:"specversion"`
	Type        string         `json:"type"`
	Data        *StorageObject `json:"data"`
}

type pubSubPush struct {
	Message *struct {
		Attributes map[string]string `json:"attributes"`
		MessageID  string            `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// Decode accepts a CloudEvent in structured mode, a CloudEvent in binary mode
// (type in the Ce-Type header, object as the body) or a Pub/Sub push
// envelope, and returns the gs:// URI of the uploaded object.
func Decode(body []byte, header http.Header) (string, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return "", fmt.Errorf("Decode: invalid JSON: %w", err)
	}

	switch {
	case probe["message"] != nil:
		return decodePubSub(body)
	case probe["specversion"] != nil || probe["data"] != nil:
		return decodeStructured(body)
	default:
		return decodeBinary(body, header.Get(ceTypeHeader))
	}
}

func decodeStructured(body []byte) (string, error) {
	var ev cloudEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return "", fmt.Errorf("decodeStructured: %w", err)
	}
	if ev.Type != "" && ev.Type != FinalizedType {
		return "", fmt.Errorf("decodeStructured: type %q: %w", ev.Type, ErrIgnored)
	}
	if ev.Data == nil {
		return "", errors.New("decodeStructured: missing data")
	}
	return objectURI(*ev.Data)
}

func decodeBinary(body []byte, ceType string) (string, error) {
	if ceType != "" && ceType != FinalizedType {
		return "", fmt.Errorf("decodeBinary: type %q: %w", ceType, ErrIgnored)
	}
	var obj StorageObject
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", fmt.Errorf("decodeBinary: %w", err)
	}
	return objectURI(obj)
}

func decodePubSub(body []byte) (string, error) {
	var push pubSubPush
	if err := json.Unmarshal(body, &push); err != nil {
		return "", fmt.Errorf("decodePubSub: %w", err)
	}
	if push.Message == nil {
		return "", errors.New("decodePubSub: missing message")
	}
	attrs := push.Message.Attributes
	if t := attrs["eventType"]; t != "" && t != PubSubFinalize {
		return "", fmt.Errorf("decodePubSub: eventType %q: %w", t, ErrIgnored)
	}
	return objectURI(StorageObject{Bucket: attrs["bucketId"], Name: attrs["objectId"]})
}

func objectURI(obj StorageObject) (string, error) {
	if obj.Bucket == "" || obj.Name == "" {
		return "", errors.New("objectURI: bucket and name are required")
	}
	if strings.HasSuffix(obj.Name, "/") {
		return "", fmt.Errorf("objectURI: folder %q: %w", obj.Name, ErrIgnored)
	}
	return gcs.BuildURI(obj.Bucket, obj.Name), nil
}
