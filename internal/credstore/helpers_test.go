// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package credstore

import "os"

func writeRaw(path string, data []byte) error {
	return os.WriteFile(path, data, 0o600)
}
