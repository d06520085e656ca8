package stores

import "context"

const (
	EmailFieldUsername   = "username"
	EmailFieldCreatedAt  = "createdAt"
	EmailFieldVerifiedAt = "verifiedAt"
	emailAttrPrefix      = "attr."
)

// EmailRecord is the stored form of an email index entry.
type EmailRecord struct {
	Address    string
	Username   string
	Attributes map[string]string
	CreatedAt  int64
	VerifiedAt int64
}

// Verified reports whether the address has been verified.
func (r *EmailRecord) Verified() bool {
	return r != nil && r.VerifiedAt > 0
}

// AttrField returns the hash field name of attribute name.
func AttrField(name string) string {
	return emailAttrPrefix + name
}

// Fields encodes the record for HSET.
func (r *EmailRecord) Fields() map[string]any {
	fields := map[string]any{
		EmailFieldUsername: r.Username,
	}
	if r.CreatedAt > 0 {
		fields[EmailFieldCreatedAt] = formatInt(r.CreatedAt)
	}
	if r.VerifiedAt > 0 {
		fields[EmailFieldVerifiedAt] = formatInt(r.VerifiedAt)
	}
	for k, v := range r.Attributes {
		fields[AttrField(k)] = v
	}
	return fields
}

// DecodeEmail decodes HGETALL output; nil means the entry does not exist.
func DecodeEmail(address string, fields map[string]string) *EmailRecord {
	owner := fields[EmailFieldUsername]
	if owner == "" {
		return nil
	}
	return &EmailRecord{
		Address:    address,
		Username:   owner,
		Attributes: prefixed(fields, emailAttrPrefix),
		CreatedAt:  parseInt(fields[EmailFieldCreatedAt]),
		VerifiedAt: parseInt(fields[EmailFieldVerifiedAt]),
	}
}

// LoadEmail reads an email index entry; nil means absent.
func LoadEmail(ctx context.Context, r HashReader, key, address string) (*EmailRecord, error) {
	fields, err := loadHash(ctx, r, key)
	if err != nil {
		return nil, err
	}
	return DecodeEmail(address, fields), nil
}
