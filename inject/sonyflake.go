package inject

import (
	"os"
	"strconv"
	"time"

	"github.com/sony/sonyflake"

	"github.com/titpetric/cmsmigrate/migrate"
)

// runEpoch is the sonyflake start time for migration run IDs
var runEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// RunIDs produces the migration run ID generator. The machine ID comes
// from SERVER_ID, or the private IP when unset. Nil is returned when
// neither is available, and runs are logged without an ID.
func RunIDs() migrate.IDGenerator {
	settings := sonyflake.Settings{
		StartTime: runEpoch,
	}
	if val, err := strconv.ParseUint(os.Getenv("SERVER_ID"), 10, 16); err == nil && val > 0 {
		serverID := uint16(val)
		settings.MachineID = func() (uint16, error) {
			return serverID, nil
		}
	}
	if ids := sonyflake.NewSonyflake(settings); ids != nil {
		return ids
	}
	return nil
}
