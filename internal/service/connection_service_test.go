package service

import (
	"context"
	"errors"
	"testing"

	"jammer/internal/models"
)

type connRepoStub struct {
	createFn              func(context.Context, *models.Connection) error
	getByIDFn             func(context.Context, uint) (*models.Connection, error)
	getBetweenUsersFn     func(context.Context, uint, uint) (*models.Connection, error)
	acceptPendingFn       func(context.Context, uint, uint) (int64, error)
	deleteFn              func(context.Context, uint) error
	getConnectedUsersFn   func(context.Context, uint) ([]models.User, error)
	getIncomingRequestsFn func(context.Context, uint) ([]models.Connection, error)
	getSentRequestsFn     func(context.Context, uint) ([]models.Connection, error)
}

func (s *connRepoStub) Create(ctx context.Context, edge *models.Connection) error {
	return s.createFn(ctx, edge)
}
func (s *connRepoStub) GetByID(ctx context.Context, id uint) (*models.Connection, error) {
	return s.getByIDFn(ctx, id)
}
func (s *connRepoStub) GetBetweenUsers(ctx context.Context, userID1, userID2 uint) (*models.Connection, error) {
	return s.getBetweenUsersFn(ctx, userID1, userID2)
}
func (s *connRepoStub) AcceptPending(ctx context.Context, edgeID, receiverID uint) (int64, error) {
	return s.acceptPendingFn(ctx, edgeID, receiverID)
}
func (s *connRepoStub) Delete(ctx context.Context, edgeID uint) error {
	return s.deleteFn(ctx, edgeID)
}
func (s *connRepoStub) GetConnectedUsers(ctx context.Context, userID uint) ([]models.User, error) {
	return s.getConnectedUsersFn(ctx, userID)
}
func (s *connRepoStub) GetIncomingRequests(ctx context.Context, userID uint) ([]models.Connection, error) {
	return s.getIncomingRequestsFn(ctx, userID)
}
func (s *connRepoStub) GetSentRequests(ctx context.Context, userID uint) ([]models.Connection, error) {
	return s.getSentRequestsFn(ctx, userID)
}

type userRepoStub struct {
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	createFn        func(context.Context, *models.User) error
	updateFn        func(context.Context, *models.User) error
	deleteFn        func(context.Context, uint) error
	listFn          func(context.Context, int, int) ([]models.User, error)
	searchFn        func(context.Context, string, int) ([]models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *userRepoStub) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *userRepoStub) Search(ctx context.Context, term string, limit int) ([]models.User, error) {
	return s.searchFn(ctx, term, limit)
}

type dmRepoStub struct {
	getOrCreateFn    func(context.Context, uint, uint) (*models.DM, error)
	getByIDFn        func(context.Context, uint) (*models.DM, error)
	getByPairFn      func(context.Context, uint, uint) (*models.DM, error)
	listForUserFn    func(context.Context, uint) ([]models.DM, error)
	touchWatermarkFn func(context.Context, *models.DM, uint) error
	unreadCountFn    func(context.Context, *models.DM, uint) (int64, error)
}

func (s *dmRepoStub) GetOrCreate(ctx context.Context, userID1, userID2 uint) (*models.DM, error) {
	return s.getOrCreateFn(ctx, userID1, userID2)
}
func (s *dmRepoStub) GetByID(ctx context.Context, id uint) (*models.DM, error) {
	return s.getByIDFn(ctx, id)
}
func (s *dmRepoStub) GetByPair(ctx context.Context, userID1, userID2 uint) (*models.DM, error) {
	return s.getByPairFn(ctx, userID1, userID2)
}
func (s *dmRepoStub) ListForUser(ctx context.Context, userID uint) ([]models.DM, error) {
	return s.listForUserFn(ctx, userID)
}
func (s *dmRepoStub) TouchWatermark(ctx context.Context, dm *models.DM, viewerID uint) error {
	return s.touchWatermarkFn(ctx, dm, viewerID)
}
func (s *dmRepoStub) UnreadCount(ctx context.Context, dm *models.DM, viewerID uint) (int64, error) {
	return s.unreadCountFn(ctx, dm, viewerID)
}

type msgRepoStub struct {
	createFn    func(context.Context, *models.Message) error
	getByIDFn   func(context.Context, uint) (*models.Message, error)
	listRoomFn  func(context.Context, models.RoomType, uint, int, int) ([]models.Message, error)
	countRoomFn func(context.Context, models.RoomType, uint) (int64, error)
	deleteFn    func(context.Context, uint) error
}

func (s *msgRepoStub) Create(ctx context.Context, message *models.Message) error {
	return s.createFn(ctx, message)
}
func (s *msgRepoStub) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	return s.getByIDFn(ctx, id)
}
func (s *msgRepoStub) ListRoom(ctx context.Context, roomType models.RoomType, roomID uint, limit, offset int) ([]models.Message, error) {
	return s.listRoomFn(ctx, roomType, roomID, limit, offset)
}
func (s *msgRepoStub) CountRoom(ctx context.Context, roomType models.RoomType, roomID uint) (int64, error) {
	return s.countRoomFn(ctx, roomType, roomID)
}
func (s *msgRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopConnRepo() *connRepoStub {
	return &connRepoStub{
		createFn:              func(context.Context, *models.Connection) error { return nil },
		getByIDFn:             func(context.Context, uint) (*models.Connection, error) { return &models.Connection{}, nil },
		getBetweenUsersFn:     func(context.Context, uint, uint) (*models.Connection, error) { return nil, nil },
		acceptPendingFn:       func(context.Context, uint, uint) (int64, error) { return 1, nil },
		deleteFn:              func(context.Context, uint) error { return nil },
		getConnectedUsersFn:   func(context.Context, uint) ([]models.User, error) { return nil, nil },
		getIncomingRequestsFn: func(context.Context, uint) ([]models.Connection, error) { return nil, nil },
		getSentRequestsFn:     func(context.Context, uint) ([]models.Connection, error) { return nil, nil },
	}
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:       func(context.Context, uint) (*models.User, error) { return &models.User{}, nil },
		getByEmailFn:    func(context.Context, string) (*models.User, error) { return &models.User{}, nil },
		getByUsernameFn: func(context.Context, string) (*models.User, error) { return &models.User{}, nil },
		createFn:        func(context.Context, *models.User) error { return nil },
		updateFn:        func(context.Context, *models.User) error { return nil },
		deleteFn:        func(context.Context, uint) error { return nil },
		listFn:          func(context.Context, int, int) ([]models.User, error) { return nil, nil },
		searchFn:        func(context.Context, string, int) ([]models.User, error) { return nil, nil },
	}
}

func noopDMRepo() *dmRepoStub {
	return &dmRepoStub{
		getOrCreateFn:    func(context.Context, uint, uint) (*models.DM, error) { return &models.DM{}, nil },
		getByIDFn:        func(context.Context, uint) (*models.DM, error) { return &models.DM{}, nil },
		getByPairFn:      func(context.Context, uint, uint) (*models.DM, error) { return nil, nil },
		listForUserFn:    func(context.Context, uint) ([]models.DM, error) { return nil, nil },
		touchWatermarkFn: func(context.Context, *models.DM, uint) error { return nil },
		unreadCountFn:    func(context.Context, *models.DM, uint) (int64, error) { return 0, nil },
	}
}

func noopMsgRepo() *msgRepoStub {
	return &msgRepoStub{
		createFn:    func(context.Context, *models.Message) error { return nil },
		getByIDFn:   func(context.Context, uint) (*models.Message, error) { return &models.Message{}, nil },
		listRoomFn:  func(context.Context, models.RoomType, uint, int, int) ([]models.Message, error) { return nil, nil },
		countRoomFn: func(context.Context, models.RoomType, uint) (int64, error) { return 0, nil },
		deleteFn:    func(context.Context, uint) error { return nil },
	}
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != code {
		t.Fatalf("expected %s app error, got %#v", code, err)
	}
}

func TestConnectionServiceSendRequestSelf(t *testing.T) {
	svc := NewConnectionService(noopConnRepo(), noopUserRepo(), noopDMRepo(), noopMsgRepo())
	_, err := svc.SendRequest(context.Background(), 3, 3, nil)
	assertAppErrorCode(t, err, "VALIDATION_ERROR")
}

func TestConnectionServiceSendRequestAlreadyConnected(t *testing.T) {
	repo := noopConnRepo()
	repo.getBetweenUsersFn = func(context.Context, uint, uint) (*models.Connection, error) {
		return &models.Connection{ID: 4, RequesterID: 1, ReceiverID: 2, Status: models.ConnectionStatusConnected}, nil
	}
	repo.createFn = func(context.Context, *models.Connection) error {
		t.Fatal("resending toward a connected edge must not create a new one")
		return nil
	}

	svc := NewConnectionService(repo, noopUserRepo(), noopDMRepo(), noopMsgRepo())
	got, err := svc.SendRequest(context.Background(), 1, 2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 4 || got.Status != models.ConnectionStatusConnected {
		t.Fatalf("expected the existing connected edge back, got %#v", got)
	}
}

func TestConnectionServiceSendRequestAlreadySent(t *testing.T) {
	repo := noopConnRepo()
	repo.getBetweenUsersFn = func(context.Context, uint, uint) (*models.Connection, error) {
		return &models.Connection{ID: 4, RequesterID: 1, ReceiverID: 2, Status: models.ConnectionStatusPending}, nil
	}
	repo.createFn = func(context.Context, *models.Connection) error {
		t.Fatal("a repeated send must not create a second edge")
		return nil
	}

	svc := NewConnectionService(repo, noopUserRepo(), noopDMRepo(), noopMsgRepo())
	got, err := svc.SendRequest(context.Background(), 1, 2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 4 || got.Status != models.ConnectionStatusPending {
		t.Fatalf("expected the existing pending edge back, got %#v", got)
	}
	if models.DeriveConnectionView(got, 1, 2) != models.ConnectionViewPending {
		t.Fatalf("requester should still see pending, got %s", models.DeriveConnectionView(got, 1, 2))
	}
}

func TestConnectionServiceCrossingRequestsAutoAccept(t *testing.T) {
	edge := &models.Connection{ID: 7, RequesterID: 2, ReceiverID: 1, Status: models.ConnectionStatusPending}

	repo := noopConnRepo()
	repo.getBetweenUsersFn = func(context.Context, uint, uint) (*models.Connection, error) {
		return edge, nil
	}
	accepted := false
	repo.acceptPendingFn = func(_ context.Context, edgeID, receiverID uint) (int64, error) {
		if edgeID != 7 || receiverID != 1 {
			t.Fatalf("accept called with edge %d receiver %d", edgeID, receiverID)
		}
		accepted = true
		edge.Status = models.ConnectionStatusConnected
		return 1, nil
	}
	repo.getByIDFn = func(context.Context, uint) (*models.Connection, error) { return edge, nil }

	svc := NewConnectionService(repo, noopUserRepo(), noopDMRepo(), noopMsgRepo())
	got, err := svc.SendRequest(context.Background(), 1, 2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !accepted {
		t.Fatal("expected crossing request to accept the existing edge")
	}
	if got.Status != models.ConnectionStatusConnected {
		t.Fatalf("expected connected edge, got %s", got.Status)
	}
}

func TestConnectionServiceAcceptNotReceiver(t *testing.T) {
	repo := noopConnRepo()
	repo.getByIDFn = func(context.Context, uint) (*models.Connection, error) {
		return &models.Connection{ID: 5, RequesterID: 10, ReceiverID: 11, Status: models.ConnectionStatusPending}, nil
	}

	svc := NewConnectionService(repo, noopUserRepo(), noopDMRepo(), noopMsgRepo())
	_, err := svc.Accept(context.Background(), 12, 5)
	assertAppErrorCode(t, err, "FORBIDDEN")
}

func TestConnectionServiceAcceptIdempotentAfterRace(t *testing.T) {
	repo := noopConnRepo()
	repo.getByIDFn = func(context.Context, uint) (*models.Connection, error) {
		return &models.Connection{ID: 5, RequesterID: 10, ReceiverID: 11, Status: models.ConnectionStatusConnected}, nil
	}
	repo.acceptPendingFn = func(context.Context, uint, uint) (int64, error) { return 0, nil }

	svc := NewConnectionService(repo, noopUserRepo(), noopDMRepo(), noopMsgRepo())
	got, err := svc.Accept(context.Background(), 11, 5)
	if err != nil {
		t.Fatalf("expected already-connected edge to be returned, got %v", err)
	}
	if got.Status != models.ConnectionStatusConnected {
		t.Fatalf("expected connected edge, got %s", got.Status)
	}
}

func TestConnectionServiceAcceptSeedsWelcomeMessage(t *testing.T) {
	repo := noopConnRepo()
	repo.getByIDFn = func(context.Context, uint) (*models.Connection, error) {
		return &models.Connection{ID: 5, RequesterID: 10, ReceiverID: 11, Status: models.ConnectionStatusPending}, nil
	}

	dmRepo := noopDMRepo()
	dmRepo.getOrCreateFn = func(context.Context, uint, uint) (*models.DM, error) {
		return &models.DM{ID: 99, UserAID: 10, UserBID: 11}, nil
	}

	var seeded *models.Message
	msgRepo := noopMsgRepo()
	msgRepo.createFn = func(_ context.Context, m *models.Message) error {
		seeded = m
		return nil
	}

	svc := NewConnectionService(repo, noopUserRepo(), dmRepo, msgRepo)
	if _, err := svc.Accept(context.Background(), 11, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if seeded == nil {
		t.Fatal("expected a welcome message to be seeded")
	}
	if seeded.RoomType != models.RoomTypeDM || seeded.RoomID != 99 {
		t.Fatalf("welcome message in wrong room: %s %d", seeded.RoomType, seeded.RoomID)
	}
	if seeded.SenderID != 11 {
		t.Fatalf("welcome message should come from the accepter, got sender %d", seeded.SenderID)
	}
	if seeded.Content != dmWelcomeMessage {
		t.Fatalf("unexpected welcome content %q", seeded.Content)
	}
}

func TestConnectionServiceAcceptSkipsSeedWhenRoomHasHistory(t *testing.T) {
	repo := noopConnRepo()
	repo.getByIDFn = func(context.Context, uint) (*models.Connection, error) {
		return &models.Connection{ID: 5, RequesterID: 10, ReceiverID: 11, Status: models.ConnectionStatusPending}, nil
	}

	dmRepo := noopDMRepo()
	dmRepo.getOrCreateFn = func(context.Context, uint, uint) (*models.DM, error) {
		return &models.DM{ID: 99, UserAID: 10, UserBID: 11}, nil
	}

	msgRepo := noopMsgRepo()
	msgRepo.countRoomFn = func(context.Context, models.RoomType, uint) (int64, error) { return 3, nil }
	msgRepo.createFn = func(context.Context, *models.Message) error {
		t.Fatal("no welcome message should be created for a room with history")
		return nil
	}

	svc := NewConnectionService(repo, noopUserRepo(), dmRepo, msgRepo)
	if _, err := svc.Accept(context.Background(), 11, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConnectionServiceAcceptSucceedsWhenSeedingFails(t *testing.T) {
	repo := noopConnRepo()
	repo.getByIDFn = func(context.Context, uint) (*models.Connection, error) {
		return &models.Connection{ID: 5, RequesterID: 10, ReceiverID: 11, Status: models.ConnectionStatusPending}, nil
	}

	dmRepo := noopDMRepo()
	dmRepo.getOrCreateFn = func(context.Context, uint, uint) (*models.DM, error) {
		return nil, models.NewInternalError(errors.New("dm table on fire"))
	}

	svc := NewConnectionService(repo, noopUserRepo(), dmRepo, noopMsgRepo())
	if _, err := svc.Accept(context.Background(), 11, 5); err != nil {
		t.Fatalf("accept must not fail because of DM seeding: %v", err)
	}
}

func TestConnectionServiceRemoveNoEdge(t *testing.T) {
	svc := NewConnectionService(noopConnRepo(), noopUserRepo(), noopDMRepo(), noopMsgRepo())
	_, err := svc.Remove(context.Background(), 1, 2)
	assertAppErrorCode(t, err, "NOT_FOUND")
}

func TestConnectionServiceStatusViews(t *testing.T) {
	repo := noopConnRepo()
	repo.getBetweenUsersFn = func(context.Context, uint, uint) (*models.Connection, error) {
		return &models.Connection{ID: 1, RequesterID: 7, ReceiverID: 8, Status: models.ConnectionStatusPending}, nil
	}

	svc := NewConnectionService(repo, noopUserRepo(), noopDMRepo(), noopMsgRepo())

	view, _, err := svc.Status(context.Background(), 7, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view != models.ConnectionViewPending {
		t.Fatalf("requester should see pending, got %s", view)
	}

	view, _, err = svc.Status(context.Background(), 8, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view != models.ConnectionViewIncoming {
		t.Fatalf("receiver should see incoming, got %s", view)
	}

	view, _, err = svc.Status(context.Background(), 7, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view != models.ConnectionViewSelf {
		t.Fatalf("self lookup should report self, got %s", view)
	}
}
