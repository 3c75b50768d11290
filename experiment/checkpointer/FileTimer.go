package checkpointer

import (
	"fmt"
	"time"
)

// timestampLayout sorts lexically in time order
const timestampLayout = "20060102-150405.000000000"

// FileTimer returns a function which appends the current UTC time to
// filename, e.g. hlc-20210809-184043.000000001.gob for FileTimer("hlc",
// ".gob").
func FileTimer(filename, extension string) func() string {
	return fileTimer(filename, extension, time.Now)
}

func fileTimer(filename, extension string, now func() time.Time) func() string {
	return func() string {
		return fmt.Sprintf("%v-%v%v", filename,
			now().UTC().Format(timestampLayout), extension)
	}
}
