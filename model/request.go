package model

import (
	"errors"
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// SubmitRequest is what a caller hands the engine to create a fax job.
// DestinationNumber may be empty when DestinationKey names a registry entry.
type SubmitRequest struct {
	DestinationNumber string                 `json:"destination_number"`
	DestinationName   string                 `json:"destination_name"`
	DestinationKey    string                 `json:"destination_key"`
	DocumentRef       string                 `json:"document_ref"`
	ClientRef         string                 `json:"client_ref"`
	RelatedCaseRef    string                 `json:"related_case_ref"`
	Type              Type                   `json:"type"`
	Priority          Priority               `json:"priority"`
	PageCount         int                    `json:"page_count"`
	AutoRetry         *bool                  `json:"auto_retry"`
	MetaData          map[string]interface{} `json:"meta_data"`
}

func (r *SubmitRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.DestinationNumber, validation.When(r.DestinationKey == "", validation.Required), validation.By(e164Rule)),
		validation.Field(&r.DocumentRef, validation.Required, validation.By(documentRefRule)),
		validation.Field(&r.PageCount, validation.Required, validation.Min(1)),
		validation.Field(&r.Type, validation.In(Types...)),
		validation.Field(&r.Priority, validation.In(Priorities...)),
	)
}

func e164Rule(value interface{}) error {
	number, _ := value.(string)
	if number == "" {
		return nil
	}
	if !IsE164(NormalizeE164(number)) {
		return errors.New("must be a valid phone number")
	}
	return nil
}

func documentRefRule(value interface{}) error {
	ref, _ := value.(string)
	if ref == "" {
		return nil
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" {
		return errors.New("must be an absolute URI")
	}
	return nil
}

// BroadcastRequest sends one document to several registry destinations.
type BroadcastRequest struct {
	DocumentRef     string   `json:"document_ref"`
	DestinationKeys []string `json:"destination_keys"`
	PageCount       int      `json:"page_count"`
	ClientRef       string   `json:"client_ref"`
	RelatedCaseRef  string   `json:"related_case_ref"`
}

func (r *BroadcastRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.DocumentRef, validation.Required, validation.By(documentRefRule)),
		validation.Field(&r.DestinationKeys, validation.Required, validation.Each(validation.Required)),
		validation.Field(&r.PageCount, validation.Required, validation.Min(1)),
	)
}
