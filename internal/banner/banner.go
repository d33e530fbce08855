// Package banner prints the startup banner.
package banner

import (
	"fmt"
	"io"
)

const Version = "0.1.0"

// Print writes the banner with the version, storage mode and source mode.
func Print(w io.Writer, storageMode, sourceMode string) {
	banner := `
    ____        _                  __
   / __ \____ _(_)___  ____  __  _/ /_
  / /_/ / __ '/ / __ \/ __ \/ / / / __/
 / _, _/ /_/ / / / / / /_/ / /_/ / /_
/_/ |_|\__,_/_/_/ /_/\____/\__,_/\__/   v%s - Rainout Poller
`
	fmt.Fprintf(w, banner, Version)
	fmt.Fprintf(w, "storage=%s source=%s\n", storageMode, sourceMode)
	fmt.Fprintln(w, "------------------------------------------------")
}
