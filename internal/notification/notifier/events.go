package notifier

import (
	"context"
	"strconv"

	"courier-notifier/internal/common/errors"
	"courier-notifier/internal/models"
	"courier-notifier/internal/notification/rules"

	"go.opentelemetry.io/otel/attribute"
)

const (
	ParamOverpayment          = "overpayment"
	ParamReturnedPayment      = "returnedPayment"
	ParamViolationDescription = "violationDescription"
	ParamOrderStatus          = "orderStatus"
)

// NotifyPaidOrder tells the owner their order is paid. Orders that are not
// fully paid produce nothing.
func (n *Notifier) NotifyPaidOrder(ctx context.Context, orderID int64) (*models.UserNotification, error) {
	return n.notifyOrder(ctx, models.NotificationOrderIsPaid, orderID, func(o *models.Order) (map[string]string, error) {
		if o.PaymentStatus != models.OrderPaid {
			return nil, nil
		}
		return orderNumber(o), nil
	})
}

// NotifyCourierItineraryFormed announces the delivery window of one order.
func (n *Notifier) NotifyCourierItineraryFormed(ctx context.Context, orderID int64) (*models.UserNotification, error) {
	return n.notifyOrder(ctx, models.NotificationCourierItineraryFormed, orderID, func(o *models.Order) (map[string]string, error) {
		return rules.ItineraryParameters(o, n.courierPhones, n.location)
	})
}

// NotifyBonuses reports an overpayment, in minor units, credited as bonuses.
func (n *Notifier) NotifyBonuses(ctx context.Context, orderID, overpayment int64) (*models.UserNotification, error) {
	return n.notifyOrder(ctx, models.NotificationAccruedBonuses, orderID, func(o *models.Order) (map[string]string, error) {
		params := orderNumber(o)
		params[ParamOverpayment] = models.FormatMoney(overpayment)
		return params, nil
	})
}

// NotifyBonusesFromCanceledOrder reports the paid amount and points returned
// to the account of a canceled order.
func (n *Notifier) NotifyBonusesFromCanceledOrder(ctx context.Context, orderID int64) (*models.UserNotification, error) {
	return n.notifyOrder(ctx, models.NotificationBonusesFromCancelledOrder, orderID, func(o *models.Order) (map[string]string, error) {
		params := orderNumber(o)
		params[ParamReturnedPayment] = models.FormatMoney(o.PaidAmount() + o.PointsToUse)
		return params, nil
	})
}

func (n *Notifier) NotifyAddViolation(ctx context.Context, orderID int64) (*models.UserNotification, error) {
	return n.notifyViolation(ctx, models.NotificationViolationTheRules, orderID)
}

func (n *Notifier) NotifyChangedViolation(ctx context.Context, orderID int64) (*models.UserNotification, error) {
	return n.notifyViolation(ctx, models.NotificationChangedViolationStatus, orderID)
}

func (n *Notifier) NotifyCanceledViolation(ctx context.Context, orderID int64) (*models.UserNotification, error) {
	return n.notifyOrder(ctx, models.NotificationCanceledViolation, orderID, func(o *models.Order) (map[string]string, error) {
		return orderNumber(o), nil
	})
}

func (n *Notifier) NotifyOrderStatusChanged(ctx context.Context, orderID int64) (*models.UserNotification, error) {
	return n.notifyOrder(ctx, models.NotificationOrderStatusChanged, orderID, func(o *models.Order) (map[string]string, error) {
		params := orderNumber(o)
		params[ParamOrderStatus] = string(o.Status)
		return params, nil
	})
}

func (n *Notifier) notifyViolation(ctx context.Context, t models.NotificationType, orderID int64) (*models.UserNotification, error) {
	return n.notifyOrder(ctx, t, orderID, func(o *models.Order) (map[string]string, error) {
		v, err := n.orders.FindViolationByOrderID(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		params := orderNumber(o)
		params[ParamViolationDescription] = v.Description
		return params, nil
	})
}

// notifyOrder loads the order, builds parameters and emits. A nil parameter
// map with no error means nothing is due.
func (n *Notifier) notifyOrder(
	ctx context.Context,
	t models.NotificationType,
	orderID int64,
	build func(o *models.Order) (map[string]string, error),
) (*models.UserNotification, error) {
	ctx, span := n.telemetry.StartSpan(ctx, "notification.event",
		attribute.String("notification.type", string(t)),
		attribute.Int64("order.id", orderID))
	defer span.End()

	order, err := n.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.User == nil {
		return nil, errors.NewCandidateInvalidError("order " + strconv.FormatInt(orderID, 10) + " has no owner")
	}

	params, err := build(order)
	if err != nil || params == nil {
		return nil, err
	}

	notification, err := n.emitter.Emit(ctx, t, *order.User, &order.ID, params)
	if err != nil {
		n.logger.Warn("event notification failed", map[string]interface{}{
			"notificationType": string(t),
			"orderId":          orderID,
			"error":            err,
		})
		return nil, err
	}
	return notification, nil
}

func orderNumber(o *models.Order) map[string]string {
	return map[string]string{rules.ParamOrderNumber: strconv.FormatInt(o.ID, 10)}
}
