package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// scanJSONColumn is the shared Value()/Scan() body every JSONB-backed
// struct in this package uses, following the pattern established by the
// teacher's AudienceSettings/ScheduleSettings/BroadcastTestSettings
// (internal/domain/broadcast.go): marshal to JSON on the way in, clone the
// driver-owned byte slice before unmarshalling on the way out.
func scanJSONColumn(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("type assertion to []byte failed for %T", dest)
	}
	return json.Unmarshal(bytes.Clone(b), dest)
}

func valueJSONColumn(src interface{}) (driver.Value, error) {
	return json.Marshal(src)
}
