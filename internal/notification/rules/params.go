package rules

import (
	"strconv"
	"strings"
	"time"

	"courier-notifier/internal/common/errors"
	"courier-notifier/internal/models"
)

const (
	ParamOrderNumber = "orderNumber"
	ParamAmountToPay = "amountToPay"
	ParamName        = "name"
	ParamDate        = "date"
	ParamStartTime   = "startTime"
	ParamEndTime     = "endTime"
	ParamPhoneNumber = "phoneNumber"
)

// PaymentParameters carries the order number and what is still owed.
func PaymentParameters(o *models.Order) map[string]string {
	return map[string]string{
		ParamOrderNumber: strconv.FormatInt(o.ID, 10),
		ParamAmountToPay: models.FormatMoney(o.AmountDue()),
	}
}

// ItineraryParameters carries the delivery window in loc and the courier phones.
func ItineraryParameters(o *models.Order, phones []string, loc *time.Location) (map[string]string, error) {
	if o.DeliverFrom == nil || o.DeliverTo == nil {
		return nil, errors.NewCandidateInvalidError("order " + strconv.FormatInt(o.ID, 10) + " has no delivery window")
	}
	if loc == nil {
		loc = time.UTC
	}
	from, to := o.DeliverFrom.In(loc), o.DeliverTo.In(loc)
	return map[string]string{
		ParamDate:        from.Format("02-01"),
		ParamStartTime:   from.Format("15:04"),
		ParamEndTime:     to.Format("15:04"),
		ParamPhoneNumber: strings.Join(phones, ", "),
	}, nil
}
