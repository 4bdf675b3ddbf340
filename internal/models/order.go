package models

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderFormed           OrderStatus = "FORMED"
	OrderAdjustment       OrderStatus = "ADJUSTMENT"
	OrderBroughtItHimself OrderStatus = "BROUGHT_IT_HIMSELF"
	OrderConfirmed        OrderStatus = "CONFIRMED"
	OrderOnTheRoute       OrderStatus = "ON_THE_ROUTE"
	OrderDone             OrderStatus = "DONE"
	OrderNotTakenOut      OrderStatus = "NOT_TAKEN_OUT"
	OrderCanceled         OrderStatus = "CANCELED"
)

type OrderPaymentStatus string

const (
	OrderUnpaid   OrderPaymentStatus = "UNPAID"
	OrderPaid     OrderPaymentStatus = "PAID"
	OrderHalfPaid OrderPaymentStatus = "HALF_PAID"
)

type PaymentStatus string

const (
	PaymentPaid     PaymentStatus = "PAID"
	PaymentUnpaid   PaymentStatus = "UNPAID"
	PaymentRefunded PaymentStatus = "PAYMENT_REFUNDED"
)

// Order is a read snapshot. Money fields are in minor units.
type Order struct {
	ID            int64              `json:"id"`
	UserID        int64              `json:"userId"`
	User          *User              `json:"user,omitempty"`
	Status        OrderStatus        `json:"status"`
	PaymentStatus OrderPaymentStatus `json:"paymentStatus"`
	OrderDate     time.Time          `json:"orderDate"`
	DeliverFrom   *time.Time         `json:"deliverFrom,omitempty"`
	DeliverTo     *time.Time         `json:"deliverTo,omitempty"`
	PointsToUse   int64              `json:"pointsToUse"`
	Payments      []Payment          `json:"payments,omitempty"`
	Bags          []Bag              `json:"bags,omitempty"`
}

type Payment struct {
	Amount int64         `json:"amount"`
	Status PaymentStatus `json:"status"`
}

type Bag struct {
	Capacity int   `json:"capacity"`
	Price    int64 `json:"price"`
	Amount   int   `json:"amount"`
}

type Violation struct {
	OrderID     int64  `json:"orderId"`
	Description string `json:"description"`
	Level       string `json:"level"`
}

// FullPrice is the sum of bag prices times their confirmed amounts.
func (o *Order) FullPrice() int64 {
	var total int64
	for _, b := range o.Bags {
		total += b.Price * int64(b.Amount)
	}
	return total
}

// PaidAmount sums PAID payments; refunded payments do not count.
func (o *Order) PaidAmount() int64 {
	var total int64
	for _, p := range o.Payments {
		if p.Status == PaymentPaid {
			total += p.Amount
		}
	}
	return total
}

// AmountDue never goes below zero.
func (o *Order) AmountDue() int64 {
	due := o.FullPrice() - o.PaidAmount() - o.PointsToUse
	if due < 0 {
		return 0
	}
	return due
}

// FormatMoney renders minor units as a two-decimal major amount, e.g. 12050 -> "120.50".
func FormatMoney(minor int64) string {
	return fmt.Sprintf("%.2f", float64(minor)/100)
}
