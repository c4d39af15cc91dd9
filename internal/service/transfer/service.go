package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/tix-engine/internal/clock"
	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/events"
	"github.com/kirinyoku/tix-engine/internal/metrics"
	"github.com/kirinyoku/tix-engine/internal/repository"
	"github.com/kirinyoku/tix-engine/internal/uow"
)

const (
	MaxMessageLength = 280
	DefaultTTLHours  = 24
	DefaultScheme    = "tixgo"
	maxCodeAttempts  = 5
)

var allowedTTLHours = map[int]bool{24: true, 48: true, 72: true}

type Action string

const (
	Accept Action = "accept"
	Reject Action = "reject"
)

type Config struct {
	DefaultTTLHours int
	// Scheme is the deep link scheme encoded in transfer QR codes.
	Scheme string
	QRSize int
}

type Service struct {
	store     repository.Store
	publisher events.Publisher
	clock     clock.Clock
	logger    *slog.Logger
	uow       *uow.UoW
	cfg       Config
}

func New(
	store repository.Store,
	publisher events.Publisher,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if !allowedTTLHours[cfg.DefaultTTLHours] {
		cfg.DefaultTTLHours = DefaultTTLHours
	}

	if cfg.Scheme == "" {
		cfg.Scheme = DefaultScheme
	}

	if cfg.QRSize <= 0 {
		cfg.QRSize = 256
	}

	if publisher == nil {
		publisher = events.Noop{}
	}

	return &Service{
		store:     store,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
		uow:       uow.NewUoW(store),
		cfg:       cfg,
	}
}

type CreateInput struct {
	AssetType  domain.AssetType
	AssetID    uuid.UUID
	FromUserID string
	Kind       domain.TransferKind
	Price      *decimal.Decimal
	Message    *string
	// TTLHours is 24, 48 or 72. Zero picks the configured default.
	TTLHours int
}

func (s *Service) validate(in *CreateInput) error {
	if in.FromUserID == "" {
		return ErrMissingUser
	}

	if !in.AssetType.Valid() {
		return ErrInvalidAssetType
	}

	if !in.Kind.Valid() {
		return ErrInvalidKind
	}

	if in.TTLHours == 0 {
		in.TTLHours = s.cfg.DefaultTTLHours
	}
	if !allowedTTLHours[in.TTLHours] {
		return ErrInvalidTTL
	}

	switch in.Kind {
	case domain.TransferSale:
		if in.Price == nil || !in.Price.IsPositive() {
			return ErrSalePrice
		}
		p := in.Price.Round(2)
		in.Price = &p
	case domain.TransferGift:
		if in.Price != nil {
			return ErrGiftPrice
		}
	}

	if in.Message != nil {
		msg := strings.TrimSpace(*in.Message)
		switch {
		case msg == "":
			in.Message = nil
		case utf8.RuneCountInString(msg) > MaxMessageLength:
			return ErrMessageTooLong
		default:
			in.Message = &msg
		}
	}

	return nil
}

// Create offers an asset to whoever redeems the returned code. The asset is
// locked until the transfer leaves pending.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: asset, sender, kind, optional price and message, lifetime.
//
// Returns:
//   - *domain.Transfer: the pending transfer with its code and deadline.
//   - error: transfer.ErrAssetNotFound if the asset does not exist.
//   - error: transfer.ErrNotOwner if the sender does not own the asset.
//   - error: transfer.ErrNotTransferable if the ticket is not sold or the
//     collectible is not minted.
//   - error: transfer.ErrAssetLocked if the asset already has a pending transfer.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Transfer, error) {
	const op = "service.transfer.Create"

	if err := s.validate(&in); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	now := s.clock.Now()
	var out domain.Transfer

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		if err := checkTransferable(ctx, tx, in.AssetType, in.AssetID, in.FromUserID); err != nil {
			return err
		}

		if err := repository.Assets(tx, in.AssetType).Lock(ctx, in.AssetID, in.FromUserID); err != nil {
			if errors.Is(err, repository.ErrStale) {
				return ErrAssetLocked
			}
			return err
		}

		t := domain.Transfer{
			ID:         uuid.New(),
			AssetType:  in.AssetType,
			AssetID:    in.AssetID,
			FromUserID: in.FromUserID,
			Kind:       in.Kind,
			Price:      in.Price,
			Message:    in.Message,
			Status:     domain.TransferPending,
			CreatedAt:  now,
			ExpiresAt:  now.Add(time.Duration(in.TTLHours) * time.Hour),
		}

		for attempt := 1; ; attempt++ {
			code, err := domain.NewTransferCode()
			if err != nil {
				return err
			}
			t.Code = code

			err = tx.Transfers().Create(ctx, t)
			if err == nil {
				break
			}
			if !errors.Is(err, repository.ErrConflict) || attempt == maxCodeAttempts {
				return err
			}
			s.logger.Warn("transfer code collision, retrying", "attempt", attempt)
		}

		out = t

		after(func(ctx context.Context) {
			metrics.TransferOutcome("created")
			s.publish(ctx, events.New(events.TransferCreated, t.ID, now, t))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("transfer created",
		"transfer_id", out.ID,
		"asset_type", out.AssetType,
		"asset_id", out.AssetID,
		"kind", out.Kind,
		"expires_at", out.ExpiresAt,
	)

	return &out, nil
}

// checkTransferable loads the asset under a row lock and checks it can be
// offered by fromUserID.
func checkTransferable(
	ctx context.Context,
	tx repository.Repos,
	assetType domain.AssetType,
	assetID uuid.UUID,
	fromUserID string,
) error {
	var (
		owner        string
		locked       bool
		transferable bool
	)

	switch assetType {
	case domain.AssetTicket:
		t, err := tx.Tickets().GetForUpdate(ctx, assetID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAssetNotFound
			}
			return err
		}
		owner, locked, transferable = t.OwnerID, t.Locked, t.Status == domain.TicketSold
	case domain.AssetCollectible:
		c, err := tx.Collectibles().GetForUpdate(ctx, assetID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAssetNotFound
			}
			return err
		}
		owner, locked, transferable = c.OwnerID, c.Locked, c.MintStatus == domain.MintMinted
	default:
		return ErrInvalidAssetType
	}

	switch {
	case owner != fromUserID:
		return ErrNotOwner
	case !transferable:
		return ErrNotTransferable
	case locked:
		return ErrAssetLocked
	}

	return nil
}

// Lookup returns the transfer behind code with a public summary of the
// asset. A pending transfer past its deadline is reported as expired;
// nothing is written.
func (s *Service) Lookup(ctx context.Context, code string) (*domain.TransferView, error) {
	const op = "service.transfer.Lookup"

	norm, ok := domain.NormalizeTransferCode(code)
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, ErrTransferNotFound)
	}

	t, err := s.store.Transfers().GetByCode(ctx, norm)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrTransferNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if t.Status == domain.TransferPending && t.Expired(s.clock.Now()) {
		t.Status = domain.TransferExpired
	}

	asset, err := s.summary(ctx, t.AssetType, t.AssetID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &domain.TransferView{Transfer: *t, Asset: *asset}, nil
}

func (s *Service) summary(ctx context.Context, assetType domain.AssetType, id uuid.UUID) (*domain.AssetSummary, error) {
	out := domain.AssetSummary{Type: assetType, ID: id}

	switch assetType {
	case domain.AssetTicket:
		t, err := s.store.Tickets().Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out.EventID = &t.EventID
		out.TierID = &t.TierID
		out.TicketStatus = t.Status
	case domain.AssetCollectible:
		c, err := s.store.Collectibles().Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out.DefinitionID = c.DefinitionID
		out.MintStatus = c.MintStatus
	}

	return &out, nil
}

// Resolve accepts or rejects a pending transfer on behalf of the receiver.
//
// Parameters:
//   - ctx: request-scoped context.
//   - code: transfer code, case-insensitive.
//   - action: transfer.Accept or transfer.Reject.
//   - byUserID: the receiving user.
//
// Returns:
//   - *domain.Transfer: the resolved transfer.
//   - error: transfer.ErrTransferNotFound if no transfer has the code.
//   - error: transfer.ErrTransferResolved if it left pending already.
//   - error: transfer.ErrTransferExpired if the deadline passed. The expiry
//     and the asset unlock are committed before the error returns.
//   - error: transfer.ErrSelfResolve if the sender tries to resolve it.
func (s *Service) Resolve(ctx context.Context, code string, action Action, byUserID string) (*domain.Transfer, error) {
	const op = "service.transfer.Resolve"

	if action != Accept && action != Reject {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidAction)
	}

	if byUserID == "" {
		return nil, fmt.Errorf("%s:%w", op, ErrMissingUser)
	}

	norm, ok := domain.NormalizeTransferCode(code)
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, ErrTransferNotFound)
	}

	now := s.clock.Now()
	expired := false
	var out domain.Transfer

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		t, err := s.lockPending(ctx, tx, norm)
		if err != nil {
			return err
		}

		if t.Expired(now) {
			expired = true
			return s.expire(ctx, tx, after, t, now)
		}

		if byUserID == t.FromUserID {
			return ErrSelfResolve
		}

		assets := repository.Assets(tx, t.AssetType)
		var (
			status domain.TransferStatus
			to     *string
			typ    events.Type
		)

		switch action {
		case Accept:
			if err := s.handOver(ctx, tx, t, byUserID); err != nil {
				return err
			}
			status, to, typ = domain.TransferAccepted, &byUserID, events.TransferAccepted
		case Reject:
			if err := s.unlock(ctx, assets, t); err != nil {
				return err
			}
			status, typ = domain.TransferRejected, events.TransferRejected
		}

		if err := s.finish(ctx, tx, t, status, to, now); err != nil {
			return err
		}

		out = *t

		after(func(ctx context.Context) {
			metrics.TransferOutcome(string(status))
			s.publish(ctx, events.New(typ, t.ID, now, out))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if expired {
		return nil, fmt.Errorf("%s:%w", op, ErrTransferExpired)
	}

	s.logger.Info("transfer resolved", "transfer_id", out.ID, "status", out.Status)

	return &out, nil
}

// Cancel withdraws a pending transfer. Only the sender may cancel.
func (s *Service) Cancel(ctx context.Context, code, byUserID string) (*domain.Transfer, error) {
	const op = "service.transfer.Cancel"

	norm, ok := domain.NormalizeTransferCode(code)
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, ErrTransferNotFound)
	}

	now := s.clock.Now()
	expired := false
	var out domain.Transfer

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		t, err := s.lockPending(ctx, tx, norm)
		if err != nil {
			return err
		}

		if byUserID != t.FromUserID {
			return ErrNotSender
		}

		if t.Expired(now) {
			expired = true
			return s.expire(ctx, tx, after, t, now)
		}

		if err := s.unlock(ctx, repository.Assets(tx, t.AssetType), t); err != nil {
			return err
		}

		if err := s.finish(ctx, tx, t, domain.TransferCancelled, nil, now); err != nil {
			return err
		}

		out = *t

		after(func(ctx context.Context) {
			metrics.TransferOutcome(string(domain.TransferCancelled))
			s.publish(ctx, events.New(events.TransferCancelled, t.ID, now, out))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if expired {
		return nil, fmt.Errorf("%s:%w", op, ErrTransferExpired)
	}

	s.logger.Info("transfer cancelled", "transfer_id", out.ID)

	return &out, nil
}

// Expire moves a pending transfer past its deadline to expired and unlocks
// the asset. It reports false when there was nothing to do.
func (s *Service) Expire(ctx context.Context, code string) (bool, error) {
	const op = "service.transfer.Expire"

	now := s.clock.Now()
	expired := false

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		t, err := tx.Transfers().GetByCodeForUpdate(ctx, code)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTransferNotFound
			}
			return err
		}

		if t.Status != domain.TransferPending || !t.Expired(now) {
			return nil
		}

		expired = true
		return s.expire(ctx, tx, after, t, now)
	})
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	if expired {
		s.logger.Info("transfer expired", "code", code)
	}

	return expired, nil
}

func (s *Service) lockPending(ctx context.Context, tx repository.Repos, code string) (*domain.Transfer, error) {
	t, err := tx.Transfers().GetByCodeForUpdate(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}

	if t.Status != domain.TransferPending {
		return nil, ErrTransferResolved
	}

	return t, nil
}

func (s *Service) expire(
	ctx context.Context,
	tx repository.Repos,
	after func(uow.AfterCommit),
	t *domain.Transfer,
	now time.Time,
) error {
	if err := s.unlock(ctx, repository.Assets(tx, t.AssetType), t); err != nil {
		return err
	}

	if err := s.finish(ctx, tx, t, domain.TransferExpired, nil, now); err != nil {
		return err
	}

	snapshot := *t
	after(func(ctx context.Context) {
		metrics.TransferOutcome(string(domain.TransferExpired))
		s.publish(ctx, events.New(events.TransferExpired, snapshot.ID, now, snapshot))
	})

	return nil
}

// unlock releases the asset of t. An asset that is already unlocked is
// logged and tolerated so the transfer can still leave pending.
func (s *Service) unlock(ctx context.Context, assets repository.LockableAssets, t *domain.Transfer) error {
	err := assets.Unlock(ctx, t.AssetID)
	if errors.Is(err, repository.ErrStale) {
		s.logger.Warn("asset of pending transfer was not locked",
			"transfer_id", t.ID,
			"asset_type", t.AssetType,
			"asset_id", t.AssetID,
		)
		return nil
	}
	return err
}

// finish applies the status compare-and-swap that takes t out of pending.
func (s *Service) finish(
	ctx context.Context,
	tx repository.Repos,
	t *domain.Transfer,
	status domain.TransferStatus,
	to *string,
	now time.Time,
) error {
	if err := domain.CheckTransferTransition(t.Status, status); err != nil {
		return err
	}

	if err := tx.Transfers().Resolve(ctx, t.ID, status, to, now); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return ErrTransferResolved
		}
		return err
	}

	t.Status = status
	t.ResolvedAt = &now
	if to != nil {
		t.ToUserID = to
	}

	return nil
}

func (s *Service) publish(ctx context.Context, evs ...events.Event) {
	if err := s.publisher.Publish(ctx, evs...); err != nil {
		s.logger.Error("failed to publish events", "type", evs[0].Type, "error", err)
	}
}

// handOver moves the locked asset to its new owner. A ticket gets a fresh
// code so the one the sender has seen no longer opens the gate.
func (s *Service) handOver(ctx context.Context, tx repository.Repos, t *domain.Transfer, to string) error {
	if t.AssetType == domain.AssetCollectible {
		return tx.Collectibles().Reassign(ctx, t.AssetID, t.FromUserID, to)
	}

	for attempt := 1; ; attempt++ {
		code, err := domain.NewTicketCode()
		if err != nil {
			return err
		}

		err = tx.Tickets().Reissue(ctx, t.AssetID, t.FromUserID, to, code)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrConflict) || attempt == maxCodeAttempts {
			return err
		}
		s.logger.Warn("ticket code collision, retrying", "attempt", attempt)
	}
}
