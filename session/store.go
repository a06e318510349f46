package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the backing Redis deployment cannot
// be reached or returns a transport-level failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionNotFound is returned by mutation operations that require an
// existing session slot.
var ErrSessionNotFound = errors.New("session not found")

// ErrSweepUnsupported is returned by [Store.DeleteExpired]. Expired sessions
// are collected by Redis TTL; there is no explicit sweep.
var ErrSweepUnsupported = errors.New("expired sessions are deleted automatically by TTL")

// DefaultTTL is the fixed session slot lifetime. The user profile slot lives
// twice as long so a refreshed session never outlives its profile.
const DefaultTTL = 24 * time.Hour

// Store is a Redis-backed session store that handles encrypted persistence,
// TTL-based expiry, and the advisory per-user session-id index.
//
// Key layout under the configured prefix:
//
//	session-<sessionID>     encrypted session blob
//	user:<userID>           JSON array of session ids (advisory index)
//	user-data:user-<userID> JSON user profile snapshot
type Store struct {
	redis  redis.UniversalClient
	codec  *Codec
	prefix string
	ttl    time.Duration
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace; ttl <= 0 selects [DefaultTTL].
func NewStore(rdb redis.UniversalClient, codec *Codec, prefix string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if codec == nil {
		codec = &Codec{}
	}
	return &Store{
		redis:  rdb,
		codec:  codec,
		prefix: prefix,
		ttl:    ttl,
	}
}

// TTL returns the fixed session slot lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) sessionKey(sessionID string) string {
	return s.prefix + "session-" + sessionID
}

func (s *Store) userIndexKey(userID string) string {
	return s.prefix + "user:" + userID
}

func (s *Store) userDataKey(userID string) string {
	return s.prefix + "user-data:user-" + userID
}

// Put encrypts and writes the session under its slot with the fixed TTL,
// then appends the session id to the owning user's index slot.
//
// The index append is a plain read-modify-write: two concurrent refreshes
// for the same user can race and drop an id. The index is advisory (bulk
// invalidation only), so the race is accepted.
func (s *Store) Put(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" || sess.UserID == "" {
		return errors.New("session: missing id or user id")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	blob, err := s.codec.Encrypt(data)
	if err != nil {
		return err
	}

	if err := s.redis.SetEx(ctx, s.sessionKey(sess.ID), blob, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	ids, err := s.readUserIndex(ctx, sess.UserID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == sess.ID {
			return nil
		}
	}
	return s.writeUserIndex(ctx, sess.UserID, append(ids, sess.ID))
}

// Get retrieves and decrypts a session by id. A missing slot returns
// redis.Nil joined with [ErrSessionNotFound]. Decryption failures are
// logged and reported as not-found; corrupt blobs must never surface as
// hard errors on the validation path.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	blob, err := s.redis.Get(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Join(redis.Nil, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := s.decode(blob)
	if err != nil {
		log.Print("oidcsession: session blob decryption failed, treating as not found")
		return nil, errors.Join(redis.Nil, ErrSessionNotFound)
	}
	sess.ID = sessionID

	return sess, nil
}

// Update re-encrypts and rewrites an existing session in place with a full
// TTL refresh. The slot must already exist.
func (s *Store) Update(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session: missing id")
	}

	exists, err := s.redis.Exists(ctx, s.sessionKey(sess.ID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if exists == 0 {
		return ErrSessionNotFound
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	blob, err := s.codec.Encrypt(data)
	if err != nil {
		return err
	}
	if err := s.redis.SetEx(ctx, s.sessionKey(sess.ID), blob, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// UpdateExpiry merges a new session-level expiry into the stored record and
// rewrites it with a full TTL refresh. Returns [ErrSessionNotFound] when the
// slot is absent.
func (s *Store) UpdateExpiry(ctx context.Context, sessionID string, expiresAt time.Time) error {
	blob, err := s.redis.Get(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := s.decode(blob)
	if err != nil {
		return err
	}
	sess.ID = sessionID
	sess.ExpiresAt = expiresAt.UnixMilli()

	return s.Update(ctx, sess)
}

// Delete removes the session slot and filters the id out of the owning
// user's index. Deleting an absent session is a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	blob, err := s.redis.Get(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if err := s.redis.Del(ctx, s.sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := s.decode(blob)
	if err != nil {
		// Slot is gone; without a user id the index entry is unreachable
		// and will age out with the index TTL.
		log.Print("oidcsession: deleted session blob was undecryptable, index entry left to expire")
		return nil
	}

	ids, err := s.readUserIndex(ctx, sess.UserID)
	if err != nil || len(ids) == 0 {
		return err
	}
	filtered := ids[:0]
	for _, id := range ids {
		if id != sessionID {
			filtered = append(filtered, id)
		}
	}
	return s.writeUserIndex(ctx, sess.UserID, filtered)
}

// DeleteAllForUser deletes every session slot listed in the user's index,
// then the index itself. Best-effort: a stale index leaves stragglers to
// natural TTL expiry.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	ids, err := s.readUserIndex(ctx, userID)
	if err != nil {
		return err
	}

	if len(ids) > 0 {
		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, s.sessionKey(id))
		}
		if err := s.redis.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if err := s.redis.Del(ctx, s.userIndexKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// SessionIDsForUser returns the advisory index contents for a user.
func (s *Store) SessionIDsForUser(ctx context.Context, userID string) ([]string, error) {
	return s.readUserIndex(ctx, userID)
}

// PutUserSnapshot stores the user profile snapshot with twice the session TTL.
func (s *Store) PutUserSnapshot(ctx context.Context, user *User) error {
	if user == nil || user.ID == "" {
		return errors.New("session: missing user id")
	}
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := s.redis.SetEx(ctx, s.userDataKey(user.ID), data, 2*s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// GetUserSnapshot reads the user profile slot. A missing profile invalidates
// the whole (session, user) pair on the validation path, even when the
// session record itself exists.
func (s *Store) GetUserSnapshot(ctx context.Context, userID string) (*User, error) {
	data, err := s.redis.Get(ctx, s.userDataKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Join(redis.Nil, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteExpired always fails: TTL-based collection is sufficient and there
// is no sweep entry point.
func (s *Store) DeleteExpired(context.Context) error {
	return ErrSweepUnsupported
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) decode(blob string) (*Session, error) {
	data, err := s.codec.Decrypt(blob)
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return &sess, nil
}

func (s *Store) readUserIndex(ctx context.Context, userID string) ([]string, error) {
	raw, err := s.redis.Get(ctx, s.userIndexKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		log.Print("oidcsession: user session index is corrupt, resetting")
		return nil, nil
	}
	return ids, nil
}

func (s *Store) writeUserIndex(ctx context.Context, userID string, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := s.redis.SetEx(ctx, s.userIndexKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
