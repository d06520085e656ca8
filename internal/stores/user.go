package stores

import "context"

const (
	UserFieldUsername         = "username"
	UserFieldPassword         = "password"
	UserFieldSalt             = "salt"
	UserFieldEmail            = "email"
	UserFieldRoles            = "roles"
	UserFieldCreatedAt        = "createdAt"
	UserFieldUpdatedAt        = "updatedAt"
	UserFieldLastActivityAt   = "lastActivityAt"
	UserFieldRequests         = "requests"
	UserFieldLicenseExpiresAt = "licenseExpiresAt"
	userProfilePrefix         = "profile."
)

// UserRecord is the stored form of a user.
type UserRecord struct {
	Username     string
	PasswordHash string
	Salt         string
	Emails       []string
	Roles        []string
	Profile      map[string]string

	CreatedAt        int64
	UpdatedAt        int64
	LastActivityAt   int64
	Requests         int64
	LicenseExpiresAt int64
}

// Fields encodes the record for HSET. Empty optional fields are omitted, so a
// writer replacing a record must DEL before HSET.
func (r *UserRecord) Fields() map[string]any {
	fields := map[string]any{
		UserFieldUsername: r.Username,
		UserFieldRequests: formatInt(r.Requests),
	}
	if r.PasswordHash != "" && r.Salt != "" {
		fields[UserFieldPassword] = r.PasswordHash
		fields[UserFieldSalt] = r.Salt
	}
	if len(r.Emails) > 0 {
		fields[UserFieldEmail] = JoinList(r.Emails)
	}
	if len(r.Roles) > 0 {
		fields[UserFieldRoles] = JoinList(r.Roles)
	}
	for name, v := range map[string]int64{
		UserFieldCreatedAt:        r.CreatedAt,
		UserFieldUpdatedAt:        r.UpdatedAt,
		UserFieldLastActivityAt:   r.LastActivityAt,
		UserFieldLicenseExpiresAt: r.LicenseExpiresAt,
	} {
		if v > 0 {
			fields[name] = formatInt(v)
		}
	}
	for k, v := range r.Profile {
		fields[userProfilePrefix+k] = v
	}
	return fields
}

// HasEmail reports whether address is in the record's email list.
func (r *UserRecord) HasEmail(address string) bool {
	for _, e := range r.Emails {
		if e == address {
			return true
		}
	}
	return false
}

// DecodeUser decodes HGETALL output. It returns nil when the hash has no
// username field, i.e. the user does not exist.
func DecodeUser(fields map[string]string) *UserRecord {
	username := fields[UserFieldUsername]
	if username == "" {
		return nil
	}
	rec := &UserRecord{
		Username:         username,
		PasswordHash:     fields[UserFieldPassword],
		Salt:             fields[UserFieldSalt],
		Emails:           SplitList(fields[UserFieldEmail]),
		Roles:            SplitList(fields[UserFieldRoles]),
		Profile:          prefixed(fields, userProfilePrefix),
		CreatedAt:        parseInt(fields[UserFieldCreatedAt]),
		UpdatedAt:        parseInt(fields[UserFieldUpdatedAt]),
		LastActivityAt:   parseInt(fields[UserFieldLastActivityAt]),
		Requests:         parseInt(fields[UserFieldRequests]),
		LicenseExpiresAt: parseInt(fields[UserFieldLicenseExpiresAt]),
	}
	if rec.PasswordHash == "" || rec.Salt == "" {
		rec.PasswordHash, rec.Salt = "", ""
	}
	return rec
}

// LoadUser reads a user record; nil means absent.
func LoadUser(ctx context.Context, r HashReader, key string) (*UserRecord, error) {
	fields, err := loadHash(ctx, r, key)
	if err != nil {
		return nil, err
	}
	return DecodeUser(fields), nil
}
