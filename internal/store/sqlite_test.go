package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/halcyongrid/logind/internal/auth"
	"github.com/halcyongrid/logind/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "logind.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return s
}

func seedRegion(t *testing.T, s *SQLiteStore, region *domain.RegionDescriptor, isDefault, isFallback, isSafe bool) {
	t.Helper()
	if err := s.UpsertRegion(context.Background(), region, isDefault, isFallback, isSafe); err != nil {
		t.Fatalf("UpsertRegion(%s): %v", region.Name, err)
	}
}

func TestAccountLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	missing, err := s.Find(ctx, "", "Test", "User")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if missing != nil {
		t.Fatalf("Find on empty store = %+v, want nil", missing)
	}

	created, err := s.Create(ctx, "", "Test", "User", "hunter2")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.UserID == "" {
		t.Fatal("Create returned empty user ID")
	}

	found, err := s.Find(ctx, "", "Test", "User")
	if err != nil {
		t.Fatalf("Find after create: %v", err)
	}
	if found == nil || found.UserID != created.UserID {
		t.Fatalf("Find = %+v, want user %s", found, created.UserID)
	}
	if found.TermsAccepted {
		t.Error("new account already has terms accepted")
	}

	if err := s.RecordTermsAcceptance(ctx, created.UserID); err != nil {
		t.Fatalf("RecordTermsAcceptance: %v", err)
	}
	found, err = s.Find(ctx, "", "Test", "User")
	if err != nil {
		t.Fatalf("Find after acceptance: %v", err)
	}
	if !found.TermsAccepted {
		t.Error("terms acceptance not persisted")
	}

	if err := s.SetUserLevel(ctx, created.UserID, 250); err != nil {
		t.Fatalf("SetUserLevel: %v", err)
	}
	found, _ = s.Find(ctx, "", "Test", "User")
	if found.Level != 250 {
		t.Errorf("Level = %d, want 250", found.Level)
	}
}

func TestCredentialRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "", "Pass", "Word", "secret")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	hash, salt, err := s.Credential(ctx, created.UserID)
	if err != nil {
		t.Fatalf("Credential: %v", err)
	}
	if hash == "" || salt == "" {
		t.Fatal("Create did not store a credential")
	}
	if auth.HashCredential("secret", salt) != hash {
		t.Error("stored hash does not verify against the original secret")
	}

	hash, salt, err = s.Credential(ctx, "nobody")
	if err != nil {
		t.Fatalf("Credential for unknown user: %v", err)
	}
	if hash != "" || salt != "" {
		t.Error("unknown user returned a credential")
	}
}

func TestAuthGateOverStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "", "Gate", "Check", "opensesame")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	gate := auth.NewPasswordGate(s)
	token, err := gate.Authenticate(ctx, created.UserID, "opensesame", 0)
	if err != nil {
		t.Fatalf("Authenticate with correct password: %v", err)
	}
	if token == "" {
		t.Fatal("Authenticate returned empty token")
	}

	if _, err := gate.Authenticate(ctx, created.UserID, "wrong", 0); err == nil {
		t.Fatal("Authenticate accepted a wrong password")
	}
}

func TestPresenceLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.Login(ctx, "u1", "sess-1", "secure-1")
	if err != nil || !ok {
		t.Fatalf("Login = (%v, %v), want (true, nil)", ok, err)
	}

	if err := s.Logout(ctx, "sess-1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	// Idempotent.
	if err := s.Logout(ctx, "sess-1"); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
}

func TestLocationMemoryHalvesAreIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	memory, err := s.LocationMemory(ctx, "u1")
	if err != nil {
		t.Fatalf("LocationMemory: %v", err)
	}
	if memory != nil {
		t.Fatalf("LocationMemory on empty store = %+v, want nil", memory)
	}

	home := domain.Vector3{X: 10, Y: 20, Z: 30}
	if err := s.SetHome(ctx, "u1", "r-home", home, domain.DefaultLookAt); err != nil {
		t.Fatalf("SetHome: %v", err)
	}
	if err := s.SetLast(ctx, "u1", "r-last", domain.DefaultPosition, domain.DefaultLookAt); err != nil {
		t.Fatalf("SetLast: %v", err)
	}

	memory, err = s.LocationMemory(ctx, "u1")
	if err != nil {
		t.Fatalf("LocationMemory after writes: %v", err)
	}
	if memory.HomeRegionID != "r-home" || memory.HomePosition != home {
		t.Errorf("home = %s %v, want r-home %v", memory.HomeRegionID, memory.HomePosition, home)
	}
	if memory.LastRegionID != "r-last" {
		t.Errorf("last region = %s, want r-last", memory.LastRegionID)
	}

	// Updating last must not disturb home.
	if err := s.SetLast(ctx, "u1", "r-next", domain.DefaultPosition, domain.DefaultLookAt); err != nil {
		t.Fatalf("second SetLast: %v", err)
	}
	memory, _ = s.LocationMemory(ctx, "u1")
	if memory.HomeRegionID != "r-home" {
		t.Errorf("home region after SetLast = %s, want r-home", memory.HomeRegionID)
	}
	if memory.LastRegionID != "r-next" {
		t.Errorf("last region = %s, want r-next", memory.LastRegionID)
	}
}

func TestRegionQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedRegion(t, s, &domain.RegionDescriptor{
		ID: "r1", Name: "Welcome", CoordX: 1000, CoordY: 1000,
		HostName: "sim1.example.org", Port: 9000, Safe: true,
	}, true, false, false)
	seedRegion(t, s, &domain.RegionDescriptor{
		ID: "r2", Name: "Waterfront", CoordX: 1001, CoordY: 1000,
		HostName: "sim2.example.org", Port: 9000, Safe: true,
	}, false, true, false)
	seedRegion(t, s, &domain.RegionDescriptor{
		ID: "r3", Name: "Sanctuary", CoordX: 1010, CoordY: 1010,
		HostName: "sim3.example.org", Port: 9000, Safe: true,
	}, false, true, true)

	region, err := s.RegionByID(ctx, "", "r1")
	if err != nil {
		t.Fatalf("RegionByID: %v", err)
	}
	if region == nil || region.Name != "Welcome" {
		t.Fatalf("RegionByID = %+v, want Welcome", region)
	}

	region, err = s.RegionByID(ctx, "", "missing")
	if err != nil {
		t.Fatalf("RegionByID miss: %v", err)
	}
	if region != nil {
		t.Fatalf("RegionByID for unknown ID = %+v, want nil", region)
	}

	matches, err := s.RegionsByNamePattern(ctx, "", "Wa", 10)
	if err != nil {
		t.Fatalf("RegionsByNamePattern: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "r2" {
		t.Fatalf("pattern Wa matched %d regions, want only r2", len(matches))
	}

	all, err := s.RegionsByNamePattern(ctx, "", "", 10)
	if err != nil {
		t.Fatalf("RegionsByNamePattern wildcard: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("wildcard matched %d regions, want 3", len(all))
	}

	defaults, err := s.DefaultRegions(ctx, "")
	if err != nil {
		t.Fatalf("DefaultRegions: %v", err)
	}
	if len(defaults) != 1 || defaults[0].ID != "r1" {
		t.Fatalf("DefaultRegions = %d regions, want only r1", len(defaults))
	}

	// Nearest fallback to (1009, 1010) is r3, then r2.
	fallbacks, err := s.FallbackRegions(ctx, "", 1009, 1010)
	if err != nil {
		t.Fatalf("FallbackRegions: %v", err)
	}
	if len(fallbacks) != 2 || fallbacks[0].ID != "r3" || fallbacks[1].ID != "r2" {
		t.Fatalf("FallbackRegions order wrong: %v", regionIDs(fallbacks))
	}

	safes, err := s.SafeRegions(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("SafeRegions: %v", err)
	}
	if len(safes) != 1 || safes[0].ID != "r3" {
		t.Fatalf("SafeRegions = %v, want only r3", regionIDs(safes))
	}
}

func TestMarkUnsafeExcludesRegion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedRegion(t, s, &domain.RegionDescriptor{
		ID: "r1", Name: "Welcome", CoordX: 1000, CoordY: 1000,
		HostName: "sim1.example.org", Port: 9000, Safe: true,
	}, true, true, true)

	if err := s.MarkUnsafe(ctx, "r1"); err != nil {
		t.Fatalf("MarkUnsafe: %v", err)
	}
	// Idempotent.
	if err := s.MarkUnsafe(ctx, "r1"); err != nil {
		t.Fatalf("second MarkUnsafe: %v", err)
	}

	region, err := s.RegionByID(ctx, "", "r1")
	if err != nil {
		t.Fatalf("RegionByID: %v", err)
	}
	if region.Safe {
		t.Error("region still flagged safe after MarkUnsafe")
	}

	for name, query := range map[string]func() ([]*domain.RegionDescriptor, error){
		"DefaultRegions":  func() ([]*domain.RegionDescriptor, error) { return s.DefaultRegions(ctx, "") },
		"FallbackRegions": func() ([]*domain.RegionDescriptor, error) { return s.FallbackRegions(ctx, "", 0, 0) },
		"SafeRegions":     func() ([]*domain.RegionDescriptor, error) { return s.SafeRegions(ctx, "", 0, 0) },
	} {
		regions, err := query()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(regions) != 0 {
			t.Errorf("%s still returns the unsafe region", name)
		}
	}
}

func TestInventoryBootstrap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	skeleton, err := s.Skeleton(ctx, "u1")
	if err != nil {
		t.Fatalf("Skeleton: %v", err)
	}
	if len(skeleton) != 0 {
		t.Fatalf("Skeleton before bootstrap = %d folders, want 0", len(skeleton))
	}

	if err := s.CreateUserInventory(ctx, "u1"); err != nil {
		t.Fatalf("CreateUserInventory: %v", err)
	}

	skeleton, err = s.Skeleton(ctx, "u1")
	if err != nil {
		t.Fatalf("Skeleton after bootstrap: %v", err)
	}
	if len(skeleton) != len(standardFolders)+1 {
		t.Fatalf("Skeleton = %d folders, want %d", len(skeleton), len(standardFolders)+1)
	}

	var root *domain.InventoryFolder
	for i := range skeleton {
		if skeleton[i].ParentID == "" {
			root = &skeleton[i]
		}
	}
	if root == nil || root.Type != 8 {
		t.Fatalf("bootstrap produced no type-8 root folder")
	}

	if err := s.CreateUserInventory(ctx, "u1"); err == nil {
		t.Fatal("second bootstrap for the same user succeeded")
	}
}

func TestAppearanceMissingIsNil(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	appearance, err := s.Appearance(ctx, "u1")
	if err != nil {
		t.Fatalf("Appearance: %v", err)
	}
	if appearance != nil {
		t.Fatalf("Appearance for unknown user = %+v, want nil", appearance)
	}
}

func TestRegionsByNamePatternMatchesWildcardsLiterally(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedRegion(t, s, &domain.RegionDescriptor{
		ID: "r1", Name: "Sand_Box", CoordX: 1000, CoordY: 1000,
		HostName: "sim1.example.org", Port: 9000, Safe: true,
	}, false, false, false)
	seedRegion(t, s, &domain.RegionDescriptor{
		ID: "r2", Name: "SandyBox", CoordX: 1001, CoordY: 1000,
		HostName: "sim2.example.org", Port: 9000, Safe: true,
	}, false, false, false)
	seedRegion(t, s, &domain.RegionDescriptor{
		ID: "r3", Name: "100% Skyline", CoordX: 1002, CoordY: 1000,
		HostName: "sim3.example.org", Port: 9000, Safe: true,
	}, false, false, false)

	// An underscore in the search text is a literal character, not a
	// single-character wildcard.
	matches, err := s.RegionsByNamePattern(ctx, "", "Sand_", 10)
	if err != nil {
		t.Fatalf("RegionsByNamePattern: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "r1" {
		t.Fatalf("pattern Sand_ matched %v, want only r1", regionIDs(matches))
	}

	matches, err = s.RegionsByNamePattern(ctx, "", "100%", 10)
	if err != nil {
		t.Fatalf("RegionsByNamePattern: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "r3" {
		t.Fatalf("pattern 100%% matched %v, want only r3", regionIDs(matches))
	}
}

func regionIDs(regions []*domain.RegionDescriptor) []string {
	ids := make([]string, len(regions))
	for i, r := range regions {
		ids[i] = r.ID
	}
	return ids
}
