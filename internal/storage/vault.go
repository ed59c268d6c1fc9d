package storage

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"veil/internal/platform/metrics"
	"veil/pkg/domain"
	dErrors "veil/pkg/domain-errors"
	"veil/pkg/platform/sentinel"
)

// maxLogEntries caps the API request log buckets and both audit streams.
// Oldest entries are evicted first once a stream reaches the cap.
const maxLogEntries = 1000

// apiLogRetention bounds how long API request log entries are kept before the
// cleanup job prunes them. Roughly three monthly buckets.
const apiLogRetention = 92 * 24 * time.Hour

const keyLockStripes = 32

// Vault is the typed, expiry-aware persistence layer. All reads and writes go
// through the pluggable SecureStorageProvider; the vault owns record shapes,
// bounded log growth, and the background retention job.
type Vault struct {
	provider SecureStorageProvider
	log      *slog.Logger
	metrics  *metrics.Metrics

	// keyLocks serialize read-modify-writes per storage key. Appends to the
	// capped streams, cohort envelope writes, and the cleanup job's bucket
	// rewrites all contend on the same keys; striping is FNV-1a over the key.
	keyLocks [keyLockStripes]sync.Mutex

	scheduler *cleanupScheduler
}

// Option configures the Vault.
type Option func(*Vault)

// WithLogger sets the vault logger.
func WithLogger(log *slog.Logger) Option {
	return func(v *Vault) { v.log = log }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Vault) { v.metrics = m }
}

// WithCleanupInterval starts the background retention job at the given
// cadence. Zero leaves the scheduler off; callers then drive
// ClearExpiredData themselves.
func WithCleanupInterval(interval time.Duration) Option {
	return func(v *Vault) {
		if interval > 0 {
			v.scheduler = newCleanupScheduler(v, interval)
		}
	}
}

// NewVault creates the storage layer over a provider.
func NewVault(provider SecureStorageProvider, opts ...Option) *Vault {
	v := &Vault{
		provider: provider,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.scheduler != nil {
		v.scheduler.start()
	}
	return v
}

// Dispose stops the background cleanup scheduler. Safe to call repeatedly.
func (v *Vault) Dispose() {
	if v.scheduler != nil {
		v.scheduler.stop()
	}
}

// lockKey returns the stripe guarding a storage key. Callers hold it for the
// duration of a read-modify-write so concurrent writers of the same key
// cannot interleave and drop each other's update.
func (v *Vault) lockKey(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &v.keyLocks[h.Sum32()%keyLockStripes]
}

// put encodes and stores a record. Write faults surface as ENCRYPTION_FAILED
// with the operation context; they are not retried here.
func (v *Vault) put(ctx context.Context, key string, value any, op string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeEncryptionFailed, op+": encode "+key)
	}
	if err := v.provider.StoreEncrypted(ctx, key, raw); err != nil {
		return dErrors.Wrap(err, dErrors.CodeEncryptionFailed, op+": store "+key)
	}
	return nil
}

// get retrieves and decodes a record. The boolean reports presence; absence
// is not an error. Read faults surface as CORRUPTION_DETECTED.
func (v *Vault) get(ctx context.Context, key string, out any, op string) (bool, error) {
	raw, err := v.provider.RetrieveEncrypted(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeCorruptionDetected, op+": retrieve "+key)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeCorruptionDetected, op+": decode "+key)
	}
	return true, nil
}

func (v *Vault) remove(ctx context.Context, key string, op string) error {
	err := v.provider.RemoveEncrypted(ctx, key)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeEncryptionFailed, op+": remove "+key)
	}
	return nil
}

// StoreCohortData persists the user's cohort assignments inside a versioned
// envelope. The cohort engine produces the assignments; the vault only keeps
// and filters them.
func (v *Vault) StoreCohortData(ctx context.Context, userID domain.UserID, cohorts []domain.CohortAssignment) error {
	env := cohortEnvelope{
		SchemaVersion: schemaVersionCurrent,
		Cohorts:       cohorts,
		Timestamp:     time.Now(),
		Version:       domain.SystemVersion,
	}
	key := cohortKey(userID)
	mu := v.lockKey(key)
	mu.Lock()
	defer mu.Unlock()
	return v.put(ctx, key, env, "store cohort data")
}

// GetCohortData returns the user's cohort assignments whose expiry is still
// in the future. Filtering is view-only; expired entries stay in the
// persisted envelope until ClearExpiredData purges them. Absence yields an
// empty slice, not an error.
func (v *Vault) GetCohortData(ctx context.Context, userID domain.UserID) ([]domain.CohortAssignment, error) {
	var env cohortEnvelope
	ok, err := v.get(ctx, cohortKey(userID), &env, "get cohort data")
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.CohortAssignment{}, nil
	}
	if err := checkSchema(env.SchemaVersion, cohortKey(userID)); err != nil {
		return nil, err
	}
	now := time.Now()
	active := make([]domain.CohortAssignment, 0, len(env.Cohorts))
	for _, c := range env.Cohorts {
		if !c.Expired(now) {
			active = append(active, c)
		}
	}
	return active, nil
}

// StoreUserPreferences persists preferences, stamping LastUpdated. The
// stamped record is returned.
func (v *Vault) StoreUserPreferences(ctx context.Context, userID domain.UserID, prefs domain.UserPreferences) (domain.UserPreferences, error) {
	prefs.LastUpdated = time.Now()
	env := preferencesEnvelope{SchemaVersion: schemaVersionCurrent, Preferences: prefs}
	if err := v.put(ctx, preferencesKey(userID), env, "store user preferences"); err != nil {
		return domain.UserPreferences{}, err
	}
	return prefs, nil
}

// GetUserPreferences returns the stored preferences, or the fixed defaults
// when none exist.
func (v *Vault) GetUserPreferences(ctx context.Context, userID domain.UserID) (domain.UserPreferences, error) {
	var env preferencesEnvelope
	ok, err := v.get(ctx, preferencesKey(userID), &env, "get user preferences")
	if err != nil {
		return domain.UserPreferences{}, err
	}
	if !ok {
		return domain.DefaultPreferences(), nil
	}
	if err := checkSchema(env.SchemaVersion, preferencesKey(userID)); err != nil {
		return domain.UserPreferences{}, err
	}
	return env.Preferences, nil
}

// StoreUserProfile persists the profile as-is.
func (v *Vault) StoreUserProfile(ctx context.Context, userID domain.UserID, profile map[string]any) error {
	env := profileEnvelope{SchemaVersion: schemaVersionCurrent, Profile: profile}
	return v.put(ctx, profileKey(userID), env, "store user profile")
}

// GetUserProfile returns the stored profile; missing data yields nil.
func (v *Vault) GetUserProfile(ctx context.Context, userID domain.UserID) (map[string]any, error) {
	var env profileEnvelope
	ok, err := v.get(ctx, profileKey(userID), &env, "get user profile")
	if err != nil || !ok {
		return nil, err
	}
	if err := checkSchema(env.SchemaVersion, profileKey(userID)); err != nil {
		return nil, err
	}
	return env.Profile, nil
}

// LogAPIRequest appends a cohort-sharing request to its monthly bucket,
// evicting the oldest entries beyond the cap. Logging must never block or
// fail the request path: faults are swallowed into the logger and metrics.
func (v *Vault) LogAPIRequest(ctx context.Context, entry domain.APIRequestLog) {
	key := apiLogKey(entry.Timestamp)

	mu := v.lockKey(key)
	mu.Lock()
	defer mu.Unlock()

	var bucket logBucket
	if _, err := v.get(ctx, key, &bucket, "log api request"); err != nil {
		// A corrupt bucket forfeits its history rather than the request path.
		v.log.Warn("api log bucket unreadable, starting fresh", "key", key, "error", err)
		bucket = logBucket{}
	}
	bucket.SchemaVersion = schemaVersionCurrent
	bucket.Entries = append(bucket.Entries, entry)
	if len(bucket.Entries) > maxLogEntries {
		bucket.Entries = bucket.Entries[len(bucket.Entries)-maxLogEntries:]
	}
	if err := v.put(ctx, key, bucket, "log api request"); err != nil {
		if v.metrics != nil {
			v.metrics.APILogWriteFailures.Inc()
		}
		v.log.Error("api request log write failed", "key", key, "error", err)
	}
}

// GetAPIRequestLogs returns all logged API requests across monthly buckets,
// oldest bucket first.
func (v *Vault) GetAPIRequestLogs(ctx context.Context) ([]domain.APIRequestLog, error) {
	keys, err := v.provider.Keys(ctx, prefixAPILog)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCorruptionDetected, "get api request logs: list buckets")
	}
	sort.Strings(keys)
	var out []domain.APIRequestLog
	for _, key := range keys {
		var bucket logBucket
		ok, err := v.get(ctx, key, &bucket, "get api request logs")
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, bucket.Entries...)
		}
	}
	return out, nil
}

// ConsentHistory returns the user's full consent history, oldest first.
// Absence yields an empty slice.
func (v *Vault) ConsentHistory(ctx context.Context, userID domain.UserID) ([]domain.ConsentRecord, error) {
	var env consentEnvelope
	ok, err := v.get(ctx, consentKey(userID), &env, "get consent history")
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.ConsentRecord{}, nil
	}
	if err := checkSchema(env.SchemaVersion, consentKey(userID)); err != nil {
		return nil, err
	}
	return env.Records, nil
}

// SaveConsentHistory replaces the user's consent history. Callers are
// responsible for serializing read-modify-write sequences per user.
func (v *Vault) SaveConsentHistory(ctx context.Context, userID domain.UserID, records []domain.ConsentRecord) error {
	env := consentEnvelope{SchemaVersion: schemaVersionCurrent, Records: records}
	return v.put(ctx, consentKey(userID), env, "save consent history")
}

// AppendAuditEntry appends to one of the capped audit streams. Entries are
// append-only: existing entries are never edited, only evicted oldest-first
// past the cap.
func (v *Vault) AppendAuditEntry(ctx context.Context, streamKey string, entry domain.AuditLogEntry) error {
	mu := v.lockKey(streamKey)
	mu.Lock()
	defer mu.Unlock()

	var stream auditStream
	if _, err := v.get(ctx, streamKey, &stream, "append audit entry"); err != nil {
		return err
	}
	stream.SchemaVersion = schemaVersionCurrent
	stream.Entries = append(stream.Entries, entry)
	if len(stream.Entries) > maxLogEntries {
		stream.Entries = stream.Entries[len(stream.Entries)-maxLogEntries:]
	}
	return v.put(ctx, streamKey, stream, "append audit entry")
}

// AuditEntries returns the contents of an audit stream, oldest first.
func (v *Vault) AuditEntries(ctx context.Context, streamKey string) ([]domain.AuditLogEntry, error) {
	var stream auditStream
	ok, err := v.get(ctx, streamKey, &stream, "get audit entries")
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.AuditLogEntry{}, nil
	}
	if err := checkSchema(stream.SchemaVersion, streamKey); err != nil {
		return nil, err
	}
	return stream.Entries, nil
}

// WithdrawalMarker returns the purpose's withdrawal marker when one exists.
func (v *Vault) WithdrawalMarker(ctx context.Context, userID domain.UserID, purpose domain.Purpose) (*domain.WithdrawalMarker, error) {
	var marker domain.WithdrawalMarker
	ok, err := v.get(ctx, markerKey(userID, purpose), &marker, "get withdrawal marker")
	if err != nil || !ok {
		return nil, err
	}
	return &marker, nil
}

// ApplyErasure persists the write-ahead intent, applies its actions, and
// clears the intent. The cascade is not transactional with the caller's state
// write; a crash here leaves the intent behind for cleanup to resume.
func (v *Vault) ApplyErasure(ctx context.Context, intent domain.ErasureIntent) error {
	if len(intent.Actions) == 0 {
		return nil
	}
	key := intentKey(intent.UserID)
	if err := v.put(ctx, key, intent, "apply erasure"); err != nil {
		return err
	}
	for _, action := range intent.Actions {
		if err := v.applyErasureAction(ctx, intent.UserID, action); err != nil {
			return err
		}
		if v.metrics != nil {
			v.metrics.CascadeActions.Inc()
		}
	}
	return v.remove(ctx, key, "apply erasure")
}

func (v *Vault) applyErasureAction(ctx context.Context, userID domain.UserID, action domain.ErasureAction) error {
	switch action.Kind {
	case domain.EraseCohortData:
		key := cohortKey(userID)
		mu := v.lockKey(key)
		mu.Lock()
		defer mu.Unlock()
		return v.remove(ctx, key, "erase cohort data")
	case domain.EraseWriteMarker:
		marker := domain.WithdrawalMarker{
			Purpose:   action.Purpose,
			Withdrawn: true,
			Date:      time.Now(),
		}
		return v.put(ctx, markerKey(userID, action.Purpose), marker, "write withdrawal marker")
	default:
		return dErrors.Newf(dErrors.CodeInternal, "unknown erasure action %q", action.Kind)
	}
}

// PendingIntents lists erasure intents whose cascade did not complete.
func (v *Vault) PendingIntents(ctx context.Context) ([]domain.ErasureIntent, error) {
	keys, err := v.provider.Keys(ctx, prefixErasureIntent)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCorruptionDetected, "pending intents: list keys")
	}
	var intents []domain.ErasureIntent
	for _, key := range keys {
		var intent domain.ErasureIntent
		ok, err := v.get(ctx, key, &intent, "pending intents")
		if err != nil {
			return nil, err
		}
		if ok {
			intents = append(intents, intent)
		}
	}
	return intents, nil
}

// RemoveUserData deletes one logical dataset for the user. Used by scoped
// subject deletion requests.
func (v *Vault) RemoveUserData(ctx context.Context, userID domain.UserID, dataset string) error {
	switch dataset {
	case DatasetCohortData:
		return v.remove(ctx, cohortKey(userID), "remove user data")
	case DatasetPreferences:
		return v.remove(ctx, preferencesKey(userID), "remove user data")
	case DatasetProfile:
		return v.remove(ctx, profileKey(userID), "remove user data")
	case DatasetAPILogs:
		return v.removeAPILogBuckets(ctx)
	case DatasetConsentHistory:
		return v.remove(ctx, consentKey(userID), "remove user data")
	default:
		return dErrors.Newf(dErrors.CodeValidation, "unknown dataset %q", dataset)
	}
}

func (v *Vault) removeAPILogBuckets(ctx context.Context) error {
	keys, err := v.provider.Keys(ctx, prefixAPILog)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeCorruptionDetected, "remove api logs: list buckets")
	}
	for _, key := range keys {
		if err := v.removeLocked(ctx, key, "remove api logs"); err != nil {
			return err
		}
	}
	return nil
}

// RemoveAuditStream deletes an audit stream outright. Only subject deletion
// without a legal-basis retention uses this.
func (v *Vault) RemoveAuditStream(ctx context.Context, streamKey string) error {
	return v.removeLocked(ctx, streamKey, "remove audit stream")
}

// removeLocked deletes a key under its stripe lock so an append caught
// mid-flight cannot write stale entries back after the removal.
func (v *Vault) removeLocked(ctx context.Context, key, op string) error {
	mu := v.lockKey(key)
	mu.Lock()
	defer mu.Unlock()
	return v.remove(ctx, key, op)
}

// ClearAllData wipes the entire encrypted store and immediately reseeds the
// default preferences, so the system never observes a "no preferences" state
// after a full wipe.
func (v *Vault) ClearAllData(ctx context.Context, userID domain.UserID) error {
	if err := v.provider.ClearAllEncrypted(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeEncryptionFailed, "clear all data")
	}
	_, err := v.StoreUserPreferences(ctx, userID, domain.DefaultPreferences())
	return err
}

// LastCleanup returns the timestamp of the last completed retention run,
// zero when none has run yet.
func (v *Vault) LastCleanup(ctx context.Context) (time.Time, error) {
	var stamp cleanupStamp
	ok, err := v.get(ctx, keyLastCleanup, &stamp, "last cleanup")
	if err != nil || !ok {
		return time.Time{}, err
	}
	return stamp.Timestamp, nil
}
