package credential

// Keys of the values the console persists between loads.
const (
	KeyAccessToken  = "access_token"  // Bearer credential
	KeyPendingEmail = "pending_email" // Email staged between login and OTP verification
	KeySessionID    = "session_id"    // Resumable live session id
)

// Store is the durable client-side key-value area. Every key may be deleted at any
// time; the only consequence is that the user has to authenticate again.
type Store interface {
	// Get returns the value for key and whether it was present
	Get(key string) (string, bool, error)

	// Set stores value under key, replacing any previous value
	Set(key, value string) error

	// Delete removes key. Deleting a missing key is not an error
	Delete(key string) error
}
