package delivery

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"storefront-be/internal/db"
	"storefront-be/internal/idgen"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

// OrderCompleter moves the order of a deliverable assignment to delivered.
// The order service implements it; delivered is only reachable through it.
type OrderCompleter interface {
	DeliverAssignment(ctx context.Context, assignmentID, riderID int64) error
}

type Manager interface {
	Assign(ctx context.Context, in AssignInput) (*Assignment, error)
	Accept(ctx context.Context, assignmentID, riderID int64, eta *time.Time) (*Assignment, error)
	Reject(ctx context.Context, assignmentID, riderID int64, reason string) (*Assignment, error)
	UpdateStatus(ctx context.Context, assignmentID, riderID int64, to Status, notes string) (*Assignment, error)

	// Complete marks a deliverable assignment delivered and credits the
	// rider. It runs inside the caller's transaction.
	Complete(ctx context.Context, assignmentID, riderID int64) (*Assignment, error)
	// CancelActive cancels the order's live assignment, if any.
	CancelActive(ctx context.Context, orderID int64) (*Assignment, error)

	Get(ctx context.Context, assignmentID int64) (*Assignment, error)
	Live(ctx context.Context, orderID int64) (*Assignment, *Rider, error)
	RiderForUser(ctx context.Context, userID int64) (*Rider, error)

	SetCompleter(c OrderCompleter)
}

type manager struct {
	tx        db.Transactor
	repo      Repository
	ids       *idgen.Generator
	completer OrderCompleter

	now    func() time.Time
	jitter func() time.Duration
}

func NewManager(tx db.Transactor, repo Repository, ids *idgen.Generator) Manager {
	return &manager{
		tx:     tx,
		repo:   repo,
		ids:    ids,
		now:    time.Now,
		jitter: defaultETA,
	}
}

// defaultETA is uniform in [2h, 4h).
func defaultETA() time.Duration {
	return 2*time.Hour + time.Duration(rand.Int63n(int64(2*time.Hour)))
}

func (m *manager) SetCompleter(c OrderCompleter) {
	m.completer = c
}

func (m *manager) Assign(ctx context.Context, in AssignInput) (*Assignment, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Assign"),
		zap.Int64("order_id", in.OrderID),
		zap.Int64("rider_id", in.RiderID),
	)

	var out *Assignment
	err := m.tx.WithinTx(ctx, func(ctx context.Context) error {
		// 1. Serialize on the order
		if err := m.repo.LockOrder(ctx, in.OrderID); err != nil {
			return err
		}

		// 2. One live assignment per order
		live, err := m.repo.LiveByOrder(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if live != nil {
			if live.RiderID != in.RiderID || live.Status != StatusPending {
				return ErrAlreadyAssigned
			}
			live.Notes = in.Notes
			if in.EstimatedDelivery != nil {
				live.EstimatedDelivery = in.EstimatedDelivery
			}
			if err := m.repo.Update(ctx, live); err != nil {
				return err
			}
			log.Info("pending assignment refreshed", zap.String("assignment_id", live.PublicID))
			out = live
			return nil
		}

		// 3. Rider must be able to take it
		rider, err := m.repo.GetRider(ctx, in.RiderID)
		if err != nil {
			return err
		}
		if !rider.IsActive {
			return ErrRiderInactive
		}

		eta := in.EstimatedDelivery
		if eta == nil {
			t := m.now().Add(m.jitter())
			eta = &t
		}

		a := &Assignment{
			OrderID:           in.OrderID,
			RiderID:           in.RiderID,
			Status:            StatusPending,
			EstimatedDelivery: eta,
			Notes:             in.Notes,
		}

		// 4. Insert under a fresh public id
		_, err = idgen.InsertWithRetry(ctx, publicIDConstraint, m.ids.AssignmentID, func(id string) error {
			a.PublicID = id
			return m.repo.Insert(ctx, a)
		})
		if err != nil {
			return err
		}

		log.Info("assignment created", zap.String("assignment_id", a.PublicID))
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockOwned loads the assignment with its order locked and checks the rider.
func (m *manager) lockOwned(ctx context.Context, assignmentID, riderID int64) (*Assignment, error) {
	a, err := m.repo.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := m.repo.LockOrder(ctx, a.OrderID); err != nil {
		return nil, err
	}
	a, err = m.repo.LockByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.RiderID != riderID {
		return nil, ErrNotAssignedRider
	}
	return a, nil
}

func (m *manager) Accept(ctx context.Context, assignmentID, riderID int64, eta *time.Time) (*Assignment, error) {
	var out *Assignment
	err := m.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := m.lockOwned(ctx, assignmentID, riderID)
		if err != nil {
			return err
		}
		if a.Status != StatusPending {
			return illegal(a.Status, StatusAccepted)
		}

		now := m.now()
		a.Status = StatusAccepted
		a.AcceptedAt = &now
		if eta != nil {
			a.EstimatedDelivery = eta
		}
		if err := m.repo.Update(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("assignment accepted",
		zap.String("assignment_id", out.PublicID),
		zap.Int64("rider_id", riderID),
	)
	return out, nil
}

func (m *manager) Reject(ctx context.Context, assignmentID, riderID int64, reason string) (*Assignment, error) {
	var out *Assignment
	err := m.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := m.lockOwned(ctx, assignmentID, riderID)
		if err != nil {
			return err
		}
		if a.Status != StatusPending {
			return illegal(a.Status, StatusRejected)
		}

		now := m.now()
		reason = strings.TrimSpace(reason)
		a.Status = StatusRejected
		a.RejectedAt = &now
		a.RejectionReason = &reason
		if err := m.repo.Update(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("assignment rejected, order awaits reassignment",
		zap.String("assignment_id", out.PublicID),
		zap.Int64("rider_id", riderID),
	)
	return out, nil
}

func (m *manager) UpdateStatus(ctx context.Context, assignmentID, riderID int64, to Status, notes string) (*Assignment, error) {
	if !to.Valid() {
		return nil, ErrUnknownStatus
	}

	if to == StatusDelivered {
		if m.completer == nil {
			return nil, errors.New("delivery: order completer not configured")
		}
		if err := m.completer.DeliverAssignment(ctx, assignmentID, riderID); err != nil {
			return nil, err
		}
		return m.repo.GetByID(ctx, assignmentID)
	}

	var out *Assignment
	err := m.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := m.lockOwned(ctx, assignmentID, riderID)
		if err != nil {
			return err
		}
		if !CanProgress(a.Status, to) {
			return illegal(a.Status, to)
		}

		a.Status = to
		if notes != "" {
			a.Notes = notes
		}
		if err := m.repo.Update(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *manager) Complete(ctx context.Context, assignmentID, riderID int64) (*Assignment, error) {
	var out *Assignment
	err := m.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := m.lockOwned(ctx, assignmentID, riderID)
		if err != nil {
			return err
		}
		if !a.Status.Deliverable() {
			return illegal(a.Status, StatusDelivered)
		}

		now := m.now()
		a.Status = StatusDelivered
		a.ActualDelivery = &now
		if err := m.repo.Update(ctx, a); err != nil {
			return err
		}
		if err := m.repo.IncrementRiderDeliveries(ctx, a.RiderID); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *manager) CancelActive(ctx context.Context, orderID int64) (*Assignment, error) {
	var out *Assignment
	err := m.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := m.repo.LockOrder(ctx, orderID); err != nil {
			return err
		}
		live, err := m.repo.LiveByOrder(ctx, orderID)
		if err != nil || live == nil {
			return err
		}
		if live.Status.Terminal() {
			// delivered keeps its slot; nothing to cancel
			return nil
		}

		live.Status = StatusCancelled
		if err := m.repo.Update(ctx, live); err != nil {
			return err
		}
		out = live
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out != nil {
		logger.FromCtx(ctx).Info("assignment cancelled with its order",
			zap.String("assignment_id", out.PublicID),
			zap.Int64("order_id", orderID),
		)
	}
	return out, nil
}

func (m *manager) Get(ctx context.Context, assignmentID int64) (*Assignment, error) {
	return m.repo.GetByID(ctx, assignmentID)
}

// Live returns the order's live assignment with its rider, or nils.
func (m *manager) Live(ctx context.Context, orderID int64) (*Assignment, *Rider, error) {
	a, err := m.repo.LiveByOrder(ctx, orderID)
	if err != nil || a == nil {
		return nil, nil, err
	}
	rider, err := m.repo.GetRider(ctx, a.RiderID)
	if err != nil {
		return a, nil, err
	}
	return a, rider, nil
}

func (m *manager) RiderForUser(ctx context.Context, userID int64) (*Rider, error) {
	return m.repo.GetRiderByUserID(ctx, userID)
}
