// Package quota implements the gateway's admission policy as a set of pure
// functions. Nothing in this package performs I/O; callers gather the inputs
// from the usage ledger and the request and hand them in.
package quota

// MetafileThreshold is the size, in bytes, under which an overwrite of a
// meta-file is still admitted once a user's storage quota has been reached.
const MetafileThreshold = 150 * 1024

// TrafficThreshold is the monthly download traffic quota, in bytes, applied
// when a user has no explicit MonthlyTrafficQuota on record.
const TrafficThreshold = 100 * 1024 * 1024 * 1024

// Upload decides whether a write of sizeChange bytes may proceed.
// quotaReached reports whether the user's cumulative storage usage, were the
// write to land, would exceed their quota. isBlock reports whether the
// object's path is under "block/". isOverwrite reports whether the write
// replaces an existing object rather than creating a new one.
func Upload(quotaReached bool, sizeChange int64, isBlock, isOverwrite bool) bool {
	if !quotaReached {
		return true
	}
	if isBlock {
		return false
	}
	return isOverwrite && sizeChange < MetafileThreshold
}

// Download decides whether a download may proceed given the prefix owner's
// traffic usage so far this month and their monthly traffic quota, both in
// bytes.
func Download(currentTrafficBytes, permittedTrafficBytes int64) bool {
	return currentTrafficBytes <= permittedTrafficBytes
}

// Delete reports whether a delete may proceed. Deletions can only reduce
// usage, so they are always admitted.
func Delete() bool {
	return true
}
