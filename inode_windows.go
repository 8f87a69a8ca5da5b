//go:build windows

package pathwatch

// getInode extracts a file identifier from os.FileInfo.Sys()
// Windows doesn't have inodes; file identity would need
// GetFileInformationByHandle, which is not worth a handle open per event.
func getInode(sys interface{}) uint64 {
	return 0
}
