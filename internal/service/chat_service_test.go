package service

import (
	"context"
	"strings"
	"testing"

	"jammer/internal/models"
)

func newChatService(dm *dmRepoStub, msg *msgRepoStub, jam *jamRepoStub, conn *connRepoStub) *ChatService {
	return NewChatService(dm, msg, jam, conn, noopUserRepo())
}

func TestChatServiceEnsureDMSelf(t *testing.T) {
	svc := newChatService(noopDMRepo(), noopMsgRepo(), noopJamRepo(), noopConnRepo())
	_, err := svc.EnsureDM(context.Background(), 1, 1)
	assertAppErrorCode(t, err, "VALIDATION_ERROR")
}

func TestChatServiceEnsureDMRequiresConnection(t *testing.T) {
	svc := newChatService(noopDMRepo(), noopMsgRepo(), noopJamRepo(), noopConnRepo())
	_, err := svc.EnsureDM(context.Background(), 1, 2)
	assertAppErrorCode(t, err, "FORBIDDEN")
}

func TestChatServiceEnsureDMPendingConnectionNotEnough(t *testing.T) {
	conn := noopConnRepo()
	conn.getBetweenUsersFn = func(context.Context, uint, uint) (*models.Connection, error) {
		return &models.Connection{ID: 1, RequesterID: 1, ReceiverID: 2, Status: models.ConnectionStatusPending}, nil
	}

	svc := newChatService(noopDMRepo(), noopMsgRepo(), noopJamRepo(), conn)
	_, err := svc.EnsureDM(context.Background(), 1, 2)
	assertAppErrorCode(t, err, "FORBIDDEN")
}

func TestChatServiceEnsureDMExistingSurvivesDisconnect(t *testing.T) {
	dm := noopDMRepo()
	dm.getByPairFn = func(context.Context, uint, uint) (*models.DM, error) {
		return &models.DM{ID: 12, UserAID: 1, UserBID: 2}, nil
	}
	conn := noopConnRepo()
	conn.getBetweenUsersFn = func(context.Context, uint, uint) (*models.Connection, error) {
		t.Fatal("existing DM must be returned without checking the connection")
		return nil, nil
	}

	svc := newChatService(dm, noopMsgRepo(), noopJamRepo(), conn)
	got, err := svc.EnsureDM(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 12 {
		t.Fatalf("expected existing DM 12, got %d", got.ID)
	}
}

func TestChatServiceGetDMNotParticipant(t *testing.T) {
	dm := noopDMRepo()
	dm.getByIDFn = func(context.Context, uint) (*models.DM, error) {
		return &models.DM{ID: 12, UserAID: 1, UserBID: 2}, nil
	}

	svc := newChatService(dm, noopMsgRepo(), noopJamRepo(), noopConnRepo())
	_, err := svc.GetDM(context.Background(), 3, 12)
	assertAppErrorCode(t, err, "FORBIDDEN")
}

func TestChatServiceTotalUnreadSumsChannels(t *testing.T) {
	dm := noopDMRepo()
	dm.listForUserFn = func(context.Context, uint) ([]models.DM, error) {
		return []models.DM{
			{ID: 1, UserAID: 1, UserBID: 2},
			{ID: 2, UserAID: 1, UserBID: 3},
		}, nil
	}
	dm.unreadCountFn = func(_ context.Context, d *models.DM, _ uint) (int64, error) {
		if d.ID == 1 {
			return 2, nil
		}
		return 5, nil
	}

	svc := newChatService(dm, noopMsgRepo(), noopJamRepo(), noopConnRepo())
	total, err := svc.TotalUnread(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 7 {
		t.Fatalf("expected total unread 7, got %d", total)
	}
}

func TestChatServiceSendMessageEmpty(t *testing.T) {
	svc := newChatService(noopDMRepo(), noopMsgRepo(), noopJamRepo(), noopConnRepo())
	_, err := svc.SendMessage(context.Background(), 1, models.RoomTypeDM, 1, "   ")
	assertAppErrorCode(t, err, "VALIDATION_ERROR")
}

func TestChatServiceSendMessageTooLong(t *testing.T) {
	svc := newChatService(noopDMRepo(), noopMsgRepo(), noopJamRepo(), noopConnRepo())
	_, err := svc.SendMessage(context.Background(), 1, models.RoomTypeDM, 1, strings.Repeat("a", maxMessageLength+1))
	assertAppErrorCode(t, err, "VALIDATION_ERROR")
}

func TestChatServiceSendMessageUnknownRoomType(t *testing.T) {
	svc := newChatService(noopDMRepo(), noopMsgRepo(), noopJamRepo(), noopConnRepo())
	_, err := svc.SendMessage(context.Background(), 1, models.RoomType("group"), 1, "hello")
	assertAppErrorCode(t, err, "VALIDATION_ERROR")
}

func TestChatServiceSendMessageDMOutsider(t *testing.T) {
	dm := noopDMRepo()
	dm.getByIDFn = func(context.Context, uint) (*models.DM, error) {
		return &models.DM{ID: 4, UserAID: 1, UserBID: 2}, nil
	}

	svc := newChatService(dm, noopMsgRepo(), noopJamRepo(), noopConnRepo())
	_, err := svc.SendMessage(context.Background(), 9, models.RoomTypeDM, 4, "let me in")
	assertAppErrorCode(t, err, "FORBIDDEN")
}

func TestChatServiceJamRoomAdmitsHostWithoutMemberRow(t *testing.T) {
	jam := noopJamRepo()
	jam.getByIDFn = func(context.Context, uint) (*models.Jam, error) {
		return &models.Jam{ID: 3, HostID: 1}, nil
	}
	jam.getMemberFn = func(context.Context, uint, uint) (*models.JamMember, error) {
		t.Fatal("host authorization must not require a member row")
		return nil, nil
	}

	svc := newChatService(noopDMRepo(), noopMsgRepo(), jam, noopConnRepo())
	if _, err := svc.SendMessage(context.Background(), 1, models.RoomTypeJam, 3, "sound check at 6"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestChatServiceJamRoomRejectsPendingMember(t *testing.T) {
	jam := noopJamRepo()
	jam.getByIDFn = func(context.Context, uint) (*models.Jam, error) {
		return &models.Jam{ID: 3, HostID: 1}, nil
	}
	jam.getMemberFn = func(context.Context, uint, uint) (*models.JamMember, error) {
		return &models.JamMember{JamID: 3, UserID: 2, Status: models.JamMemberStatusPending}, nil
	}

	svc := newChatService(noopDMRepo(), noopMsgRepo(), jam, noopConnRepo())
	_, err := svc.SendMessage(context.Background(), 2, models.RoomTypeJam, 3, "am I in yet?")
	assertAppErrorCode(t, err, "FORBIDDEN")
}

func TestChatServiceJamRoomAdmitsApprovedMember(t *testing.T) {
	jam := noopJamRepo()
	jam.getByIDFn = func(context.Context, uint) (*models.Jam, error) {
		return &models.Jam{ID: 3, HostID: 1}, nil
	}
	jam.getMemberFn = func(context.Context, uint, uint) (*models.JamMember, error) {
		return &models.JamMember{JamID: 3, UserID: 2, Status: models.JamMemberStatusApproved}, nil
	}

	var created *models.Message
	msg := noopMsgRepo()
	msg.createFn = func(_ context.Context, m *models.Message) error {
		created = m
		return nil
	}

	svc := newChatService(noopDMRepo(), msg, jam, noopConnRepo())
	if _, err := svc.ListMessages(context.Background(), 2, models.RoomTypeJam, 3, 50, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), 2, models.RoomTypeJam, 3, "bringing my bass"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil || created.RoomType != models.RoomTypeJam || created.RoomID != 3 {
		t.Fatalf("message stored in wrong room: %#v", created)
	}
}

func TestChatServiceMarkReadOutsider(t *testing.T) {
	dm := noopDMRepo()
	dm.getByIDFn = func(context.Context, uint) (*models.DM, error) {
		return &models.DM{ID: 4, UserAID: 1, UserBID: 2}, nil
	}

	svc := newChatService(dm, noopMsgRepo(), noopJamRepo(), noopConnRepo())
	err := svc.MarkRead(context.Background(), 9, 4)
	assertAppErrorCode(t, err, "FORBIDDEN")
}
