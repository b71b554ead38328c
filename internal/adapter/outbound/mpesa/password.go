package mpesa

import (
	"encoding/base64"
	"time"
)

const timestampLayout = "20060102150405"

// eastAfrica is used when the tz database has no Africa/Nairobi entry.
var eastAfrica = time.FixedZone("EAT", 3*60*60)

func loadLocation(name string) *time.Location {
	if name == "" {
		return eastAfrica
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return eastAfrica
	}
	return loc
}

// Timestamp formats t in the provider's local time.
func Timestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(timestampLayout)
}

// Password derives the per-request password from the shortcode, passkey and timestamp.
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}
