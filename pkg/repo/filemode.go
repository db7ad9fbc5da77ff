package repo

import "os"

// defaultFileMode is applied when an entry carries no permission bits.
const defaultFileMode = 0o644

func modeFromFileInfo(info os.FileInfo) uint32 {
	return uint32(info.Mode().Perm())
}

func filePermFromMode(mode uint32) os.FileMode {
	perm := os.FileMode(mode) & os.ModePerm
	if perm == 0 {
		return defaultFileMode
	}
	return perm
}
