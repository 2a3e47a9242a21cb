package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwrk-planet/burner-chat/internal/domain"
	"github.com/cwrk-planet/burner-chat/internal/metrics"
	"github.com/cwrk-planet/burner-chat/internal/redisstore"
	"github.com/cwrk-planet/burner-chat/internal/security"
)

type MemberService struct {
	roomRepo     *redisstore.RoomRepository
	presenceRepo *redisstore.PresenceRepository
	ttl          *redisstore.TTLSynchronizer

	newToken func() (string, error)
}

func NewMemberService(
	roomRepo *redisstore.RoomRepository,
	presenceRepo *redisstore.PresenceRepository,
	ttl *redisstore.TTLSynchronizer,
) *MemberService {
	return &MemberService{
		roomRepo:     roomRepo,
		presenceRepo: presenceRepo,
		ttl:          ttl,
		newToken:     security.NewSessionToken,
	}
}

// Admit решает, пускать ли держателя presented в комнату.
// Участник проходит со своим токеном, новичок получает свежий токен,
// если есть место. Проверка и запись места: один атомарный шаг в Redis.
func (s *MemberService) Admit(ctx context.Context, roomID, presented string) (domain.Admission, error) {
	adm, err := s.admit(ctx, roomID, presented)
	if err != nil {
		return domain.Admission{}, err
	}
	metrics.Admissions.WithLabelValues(adm.Kind.String()).Inc()
	return adm, nil
}

func (s *MemberService) admit(ctx context.Context, roomID, presented string) (domain.Admission, error) {
	room, err := s.roomRepo.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return domain.Admission{Kind: domain.AdmissionRoomNotFound}, nil
		}
		return domain.Admission{}, fmt.Errorf("roomRepo.Get: %w", err)
	}

	if room.HasToken(presented) {
		return domain.Admission{Kind: domain.AdmissionContinue, Token: presented}, nil
	}
	if len(room.ConnectedTokens) >= s.roomRepo.Capacity() {
		return domain.Admission{Kind: domain.AdmissionRoomFull}, nil
	}

	token, err := s.newToken()
	if err != nil {
		return domain.Admission{}, fmt.Errorf("newToken: %w", err)
	}

	res, err := s.roomRepo.Admit(ctx, roomID, presented, token)
	if err != nil {
		return domain.Admission{}, fmt.Errorf("roomRepo.Admit: %w", err)
	}

	switch {
	case res.Kind != domain.AdmissionContinue:
		return domain.Admission{Kind: res.Kind}, nil
	case !res.Added:
		// presented успел стать участником, пока мы шли к скрипту
		return domain.Admission{Kind: domain.AdmissionContinue, Token: presented}, nil
	}

	if _, err := s.ttl.Sync(ctx, roomID); err != nil {
		return domain.Admission{}, fmt.Errorf("ttl.Sync: %w", err)
	}
	return domain.Admission{Kind: domain.AdmissionContinue, Token: token, Issued: true}, nil
}

// Authorize проверяет, что token: участник живой комнаты roomID.
func (s *MemberService) Authorize(ctx context.Context, roomID, token string) (domain.AuthContext, error) {
	if roomID == "" || token == "" {
		metrics.AuthFailures.Inc()
		return domain.AuthContext{}, domain.NewAuthError("missing roomId or token")
	}

	room, err := s.roomRepo.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			metrics.AuthFailures.Inc()
			return domain.AuthContext{}, domain.NewAuthError("invalid token")
		}
		return domain.AuthContext{}, fmt.Errorf("roomRepo.Get: %w", err)
	}
	if !room.HasToken(token) {
		metrics.AuthFailures.Inc()
		return domain.AuthContext{}, domain.NewAuthError("invalid token")
	}

	return domain.AuthContext{RoomID: roomID, Token: token, Connected: room.ConnectedTokens}, nil
}

// Connect отмечает realtime-соединение онлайн. Комнаты нет: ErrRoomGone.
func (s *MemberService) Connect(ctx context.Context, roomID, connID string) (int64, error) {
	n, ok, err := s.presenceRepo.Join(ctx, roomID, connID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.ErrRoomGone
	}
	return n, nil
}

func (s *MemberService) Disconnect(ctx context.Context, roomID, connID string) error {
	return s.presenceRepo.Leave(ctx, roomID, connID)
}

// Online: число живых realtime-соединений комнаты.
func (s *MemberService) Online(ctx context.Context, roomID string) (int64, error) {
	return s.presenceRepo.Count(ctx, roomID)
}
