package agent

import (
	"context"
	"errors"
	"testing"

	"tablevoice-service/internal/authz"
	"tablevoice-service/internal/domain/agent"
	"tablevoice-service/internal/domain/reservation"
	"tablevoice-service/internal/domain/restaurant"
	"tablevoice-service/internal/integrations/elevenlabs"
	xerrors "tablevoice-service/internal/pkg/errors"
	"tablevoice-service/internal/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAgentStore struct {
	agents     map[int64]*agent.Agent
	nextID     int64
	lastErrors map[int64]string
	callsTaken map[int64]int64
}

func newFakeAgentStore() *fakeAgentStore {
	return &fakeAgentStore{
		agents:     make(map[int64]*agent.Agent),
		nextID:     1,
		lastErrors: make(map[int64]string),
		callsTaken: make(map[int64]int64),
	}
}

func (f *fakeAgentStore) Create(_ context.Context, a *agent.Agent) error {
	a.ID = f.nextID
	f.nextID++
	f.agents[a.ID] = a
	return nil
}

func (f *fakeAgentStore) FindByID(_ context.Context, id int64) (*agent.Agent, error) {
	a, ok := f.agents[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return a, nil
}

func (f *fakeAgentStore) FindByExternalID(_ context.Context, externalID string) (*agent.Agent, error) {
	for _, a := range f.agents {
		if a.ExternalAgentID != nil && *a.ExternalAgentID == externalID {
			return a, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeAgentStore) ListByRestaurant(_ context.Context, restaurantID int64) ([]*agent.Agent, error) {
	var out []*agent.Agent
	for _, a := range f.agents {
		if a.RestaurantID == restaurantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAgentStore) Update(_ context.Context, a *agent.Agent) error {
	if _, ok := f.agents[a.ID]; !ok {
		return xerrors.ErrNotFound
	}
	f.agents[a.ID] = a
	return nil
}

func (f *fakeAgentStore) RecordCallResult(_ context.Context, id int64, durationSeconds int64) error {
	a, ok := f.agents[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	a.CallCount++
	a.TotalCallSeconds += durationSeconds
	f.callsTaken[id]++
	return nil
}

func (f *fakeAgentStore) SetLastError(_ context.Context, id int64, message string) error {
	if _, ok := f.agents[id]; !ok {
		return xerrors.ErrNotFound
	}
	f.lastErrors[id] = message
	return nil
}

func (f *fakeAgentStore) Delete(_ context.Context, id int64) error {
	if _, ok := f.agents[id]; !ok {
		return xerrors.ErrNotFound
	}
	delete(f.agents, id)
	return nil
}

type fakeToolStore struct {
	tools map[string]*agent.Tool
}

func (f *fakeToolStore) Upsert(_ context.Context, t *agent.Tool) error {
	if f.tools == nil {
		f.tools = make(map[string]*agent.Tool)
	}
	f.tools[t.ToolName] = t
	return nil
}

func (f *fakeToolStore) ListByAgent(_ context.Context, _ int64) ([]*agent.Tool, error) {
	var out []*agent.Tool
	for _, t := range f.tools {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeToolStore) Delete(_ context.Context, _ int64, toolName string) error {
	if _, ok := f.tools[toolName]; !ok {
		return xerrors.ErrNotFound
	}
	delete(f.tools, toolName)
	return nil
}

type fakeRestaurantStore struct {
	restaurants map[int64]*restaurant.Restaurant
}

func (f *fakeRestaurantStore) FindByID(_ context.Context, id int64) (*restaurant.Restaurant, error) {
	rest, ok := f.restaurants[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return rest, nil
}

func (f *fakeRestaurantStore) OwnershipOf(_ context.Context, restaurantID int64) (int64, int64, error) {
	rest, ok := f.restaurants[restaurantID]
	if !ok {
		return 0, 0, xerrors.ErrNotFound
	}
	return rest.Ownership.UserID, rest.Ownership.OrganizationID, nil
}

type noMembership struct{}

func (noMembership) RoleOf(context.Context, int64, int64) (authz.OrgRole, error) {
	return "", xerrors.ErrNotFound
}

type noAccess struct{}

func (noAccess) PermissionsOf(context.Context, int64, int64) (authz.RestaurantRole, []string, error) {
	return "", nil, xerrors.ErrNotFound
}

type fakeProvider struct {
	createErr error
	uploadErr error

	created    []*elevenlabs.AgentConfig
	updated    map[string]*elevenlabs.AgentConfig
	remote     map[string]*elevenlabs.AgentConfig
	deleted    []string
	uploads    int
	kbDeleted  []string
	calls      []string
	nextFileID int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		updated: make(map[string]*elevenlabs.AgentConfig),
		remote:  make(map[string]*elevenlabs.AgentConfig),
	}
}

func (f *fakeProvider) CreateAgent(_ context.Context, cfg *elevenlabs.AgentConfig) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, cfg)
	return "ext-agent-1", nil
}

func (f *fakeProvider) GetAgent(_ context.Context, agentID string) (*elevenlabs.AgentConfig, error) {
	cfg, ok := f.remote[agentID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return cfg, nil
}

func (f *fakeProvider) UpdateAgent(_ context.Context, agentID string, cfg *elevenlabs.AgentConfig) error {
	f.updated[agentID] = cfg
	return nil
}

func (f *fakeProvider) DeleteAgent(_ context.Context, agentID string) error {
	f.deleted = append(f.deleted, agentID)
	return nil
}

func (f *fakeProvider) UploadKnowledgeBaseFile(_ context.Context, _, _ string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads++
	f.nextFileID++
	return "file-" + string(rune('0'+f.nextFileID)), nil
}

func (f *fakeProvider) DeleteKnowledgeBaseFile(_ context.Context, fileID string) error {
	f.kbDeleted = append(f.kbDeleted, fileID)
	return nil
}

func (f *fakeProvider) StartOutboundCall(_ context.Context, agentID, _, toNumber string) (string, error) {
	f.calls = append(f.calls, agentID+"->"+toNumber)
	return "CA-test", nil
}

type fakeNumberReleaser struct {
	released []string
}

func (f *fakeNumberReleaser) ReleaseNumber(_ context.Context, sid string) error {
	f.released = append(f.released, sid)
	return nil
}

type fakeBookingRecorder struct {
	bookings []*reservation.CreateReservationRequest
	err      error
}

func (f *fakeBookingRecorder) CreateFromAgent(_ context.Context, _, _ int64, req *reservation.CreateReservationRequest) (*reservation.Reservation, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bookings = append(f.bookings, req)
	return &reservation.Reservation{ID: 1}, nil
}

type fixture struct {
	svc       *AgentService
	agents    *fakeAgentStore
	provider  *fakeProvider
	telephony *fakeNumberReleaser
	bookings  *fakeBookingRecorder
}

// ownerID 1 owns restaurant 10 in every fixture.
func newFixture() *fixture {
	agents := newFakeAgentStore()
	provider := newFakeProvider()
	telephony := &fakeNumberReleaser{}
	bookings := &fakeBookingRecorder{}
	restaurants := &fakeRestaurantStore{restaurants: map[int64]*restaurant.Restaurant{
		10: {
			ID:        10,
			Name:      "Trattoria Roma",
			Ownership: restaurant.PersonalOwnership(1),
			Status:    restaurant.StatusActive,
		},
	}}

	authorizer := authz.NewAuthorizer(restaurants, noMembership{}, noAccess{}, zap.NewNop())
	svc := NewAgentService(agents, &fakeToolStore{}, restaurants, provider, telephony, authorizer, ws.NewHub(zap.NewNop()), zap.NewNop())
	svc.SetBookingRecorder(bookings)

	return &fixture{svc: svc, agents: agents, provider: provider, telephony: telephony, bookings: bookings}
}

func TestCreate_ProvisionsRemoteAgent(t *testing.T) {
	f := newFixture()

	a, err := f.svc.Create(context.Background(), 1, &agent.CreateAgentRequest{RestaurantID: 10, Style: "warm"})
	require.NoError(t, err)

	assert.Equal(t, agent.StatusActive, a.Status)
	require.NotNil(t, a.ExternalAgentID)
	assert.Equal(t, "ext-agent-1", *a.ExternalAgentID)
	assert.Equal(t, 10, a.MaxDurationMinutes, "duration defaults")
	assert.Contains(t, a.Greeting, "Trattoria Roma", "greeting defaults to restaurant name")

	require.Len(t, f.provider.created, 1)
	assert.Equal(t, "Trattoria Roma reservations", f.provider.created[0].Name)
}

func TestCreate_ProviderFailureRecorded(t *testing.T) {
	f := newFixture()
	f.provider.createErr = errors.New("provider down")

	_, err := f.svc.Create(context.Background(), 1, &agent.CreateAgentRequest{RestaurantID: 10})
	require.Error(t, err)

	// The local row exists in configuring with the error recorded.
	stored := f.agents.agents[1]
	require.NotNil(t, stored)
	assert.Equal(t, agent.StatusConfiguring, stored.Status)
	assert.Nil(t, stored.ExternalAgentID)
	assert.Equal(t, "provider down", f.agents.lastErrors[1])
}

func TestCreate_RequiresEditPermission(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), 2, &agent.CreateAgentRequest{RestaurantID: 10})
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestUpdate_PreservesRemoteToolBindings(t *testing.T) {
	f := newFixture()
	a, err := f.svc.Create(context.Background(), 1, &agent.CreateAgentRequest{RestaurantID: 10})
	require.NoError(t, err)

	f.provider.remote["ext-agent-1"] = &elevenlabs.AgentConfig{
		AgentID: "ext-agent-1",
		ToolIDs: []string{"tool-x"},
		VoiceID: "voice-remote",
	}

	greeting := "Buongiorno!"
	updated, err := f.svc.Update(context.Background(), 1, a.ID, &agent.UpdateAgentRequest{Greeting: &greeting})
	require.NoError(t, err)
	assert.Equal(t, "Buongiorno!", updated.Greeting)

	pushed := f.provider.updated["ext-agent-1"]
	require.NotNil(t, pushed)
	assert.Equal(t, []string{"tool-x"}, pushed.ToolIDs)
	assert.Equal(t, "Buongiorno!", pushed.FirstMessage)
	assert.Equal(t, "voice-remote", pushed.VoiceID, "remote voice kept when none set locally")
}

func TestDocumentLifecycle(t *testing.T) {
	f := newFixture()
	a, err := f.svc.Create(context.Background(), 1, &agent.CreateAgentRequest{RestaurantID: 10})
	require.NoError(t, err)

	a, err = f.svc.AddDocument(context.Background(), 1, a.ID, &agent.AddDocumentRequest{Name: "menu.txt", Content: "Margherita"})
	require.NoError(t, err)
	require.Len(t, a.Documents, 1)
	assert.Equal(t, agent.DocumentPending, a.Documents[0].Status)
	assert.NotEmpty(t, a.Documents[0].ID)

	report, err := f.svc.SyncKnowledgeBase(context.Background(), 1, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Uploaded)
	assert.Equal(t, agent.DocumentSynced, f.agents.agents[a.ID].Documents[0].Status)
	assert.NotEmpty(t, f.agents.agents[a.ID].Documents[0].ExternalID)

	a, err = f.svc.RemoveDocument(context.Background(), 1, a.ID, a.Documents[0].ID)
	require.NoError(t, err)
	assert.Equal(t, agent.DocumentRemoved, a.Documents[0].Status)

	report, err = f.svc.SyncKnowledgeBase(context.Background(), 1, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	assert.Empty(t, f.agents.agents[a.ID].Documents)
	assert.Len(t, f.provider.kbDeleted, 1)
}

func TestSyncKnowledgeBase_UploadFailureSkips(t *testing.T) {
	f := newFixture()
	a, err := f.svc.Create(context.Background(), 1, &agent.CreateAgentRequest{RestaurantID: 10})
	require.NoError(t, err)
	_, err = f.svc.AddDocument(context.Background(), 1, a.ID, &agent.AddDocumentRequest{Name: "menu.txt", Content: "x"})
	require.NoError(t, err)

	f.provider.uploadErr = errors.New("upload failed")

	report, err := f.svc.SyncKnowledgeBase(context.Background(), 1, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, agent.DocumentPending, f.agents.agents[a.ID].Documents[0].Status, "stays pending for the next sync")
}

func TestRemoveDocument_UnknownID(t *testing.T) {
	f := newFixture()
	a, err := f.svc.Create(context.Background(), 1, &agent.CreateAgentRequest{RestaurantID: 10})
	require.NoError(t, err)

	_, err = f.svc.RemoveDocument(context.Background(), 1, a.ID, "nope")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestTestCall(t *testing.T) {
	f := newFixture()
	a, err := f.svc.Create(context.Background(), 1, &agent.CreateAgentRequest{RestaurantID: 10})
	require.NoError(t, err)

	t.Run("requires a phone number", func(t *testing.T) {
		_, err := f.svc.TestCall(context.Background(), 1, a.ID, &agent.TestCallRequest{ToNumber: "+15550001111"})
		assert.ErrorIs(t, err, xerrors.ErrConflict)
	})

	t.Run("places the call", func(t *testing.T) {
		number := "+15550002222"
		a.PhoneNumber = &number

		callID, err := f.svc.TestCall(context.Background(), 1, a.ID, &agent.TestCallRequest{ToNumber: "+15550001111"})
		require.NoError(t, err)
		assert.Equal(t, "CA-test", callID)
		assert.Equal(t, []string{"ext-agent-1->+15550001111"}, f.provider.calls)
	})
}

func TestDelete_TearsDownProviderResources(t *testing.T) {
	f := newFixture()
	a, err := f.svc.Create(context.Background(), 1, &agent.CreateAgentRequest{RestaurantID: 10})
	require.NoError(t, err)

	sid := "PN123"
	number := "+15550002222"
	a.PhoneNumberSID = &sid
	a.PhoneNumber = &number

	require.NoError(t, f.svc.Delete(context.Background(), 1, a.ID))

	assert.Equal(t, []string{"PN123"}, f.telephony.released)
	assert.Equal(t, []string{"ext-agent-1"}, f.provider.deleted)
	assert.Empty(t, f.agents.agents)
}

func TestPurgeRestaurantAgents(t *testing.T) {
	f := newFixture()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(context.Background(), 1, &agent.CreateAgentRequest{RestaurantID: 10})
		require.NoError(t, err)
	}

	count, err := f.svc.PurgeRestaurantAgents(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Empty(t, f.agents.agents)
}

func TestHandleProviderEvent(t *testing.T) {
	newAgentFixture := func(t *testing.T) (*fixture, *agent.Agent) {
		f := newFixture()
		a, err := f.svc.Create(context.Background(), 1, &agent.CreateAgentRequest{RestaurantID: 10})
		require.NoError(t, err)
		return f, a
	}

	t.Run("records call metrics", func(t *testing.T) {
		f, a := newAgentFixture(t)

		err := f.svc.HandleProviderEvent(context.Background(), &ProviderEvent{
			Type:            "post_call_transcription",
			AgentID:         "ext-agent-1",
			DurationSeconds: 95,
			Status:          "done",
		})
		require.NoError(t, err)

		assert.Equal(t, int64(1), f.agents.agents[a.ID].CallCount)
		assert.Equal(t, int64(95), f.agents.agents[a.ID].TotalCallSeconds)
	})

	t.Run("persists an extracted booking", func(t *testing.T) {
		f, _ := newAgentFixture(t)

		err := f.svc.HandleProviderEvent(context.Background(), &ProviderEvent{
			Type:    "post_call",
			AgentID: "ext-agent-1",
			Booking: &BookingEvent{
				CustomerName:  "Ada Jones",
				CustomerPhone: "+15550001111",
				Date:          "2026-09-12",
				Time:          "19:00",
				PartySize:     2,
			},
		})
		require.NoError(t, err)

		require.Len(t, f.bookings.bookings, 1)
		assert.Equal(t, "Ada Jones", f.bookings.bookings[0].CustomerName)
	})

	t.Run("booking failure does not fail the webhook", func(t *testing.T) {
		f, _ := newAgentFixture(t)
		f.bookings.err = errors.New("restaurant full")

		err := f.svc.HandleProviderEvent(context.Background(), &ProviderEvent{
			Type:    "post_call",
			AgentID: "ext-agent-1",
			Booking: &BookingEvent{CustomerName: "Ada"},
		})
		assert.NoError(t, err)
	})

	t.Run("call error recorded on the agent", func(t *testing.T) {
		f, a := newAgentFixture(t)

		err := f.svc.HandleProviderEvent(context.Background(), &ProviderEvent{
			Type:         "post_call",
			AgentID:      "ext-agent-1",
			Status:       "error",
			ErrorMessage: "caller hung up mid-transfer",
		})
		require.NoError(t, err)
		assert.Equal(t, "caller hung up mid-transfer", f.agents.lastErrors[a.ID])
	})

	t.Run("unknown external agent", func(t *testing.T) {
		f, _ := newAgentFixture(t)
		err := f.svc.HandleProviderEvent(context.Background(), &ProviderEvent{Type: "post_call", AgentID: "ext-unknown"})
		assert.ErrorIs(t, err, xerrors.ErrNotFound)
	})

	t.Run("unrelated event types ignored", func(t *testing.T) {
		f, a := newAgentFixture(t)
		err := f.svc.HandleProviderEvent(context.Background(), &ProviderEvent{Type: "voice_cloned", AgentID: "ext-agent-1"})
		require.NoError(t, err)
		assert.Zero(t, f.agents.agents[a.ID].CallCount)
	})

	t.Run("missing agent id rejected", func(t *testing.T) {
		f, _ := newAgentFixture(t)
		err := f.svc.HandleProviderEvent(context.Background(), &ProviderEvent{Type: "post_call"})
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})
}
