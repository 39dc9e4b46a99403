package domain

import "time"

// AdjustmentWindowDays — длительность окна после даты доставки, в течение
// которого позиция заказа доступна для возврата или обмена.
const AdjustmentWindowDays = 7

// Eligibility — результат расчёта доступности возврата/обмена для позиции.
type Eligibility struct {
	Eligible      bool
	DaysRemaining int
	// Returnable — сколько единиц позиции ещё можно заявить к возврату
	// с учётом уже существующих неотклонённых заявок.
	Returnable int32
	// ExchangeEligible зависит только от окна: обмен остаётся доступным,
	// даже когда возвращаемое количество исчерпано.
	ExchangeEligible bool
	// Reason заполняется, когда Eligible == false.
	Reason error
}

// WindowState описывает положение момента now относительно окна корректировок.
type WindowState struct {
	Delivered     bool
	Open          bool
	DaysElapsed   int
	DaysRemaining int
}

// AdjustmentWindow вычисляет состояние окна корректировок по дате доставки.
// Дни считаются календарно: заявка в день `delivery + 7` ещё проходит,
// в день `delivery + 8` — уже нет.
func AdjustmentWindow(deliveryDate, now time.Time) WindowState {
	elapsed := daysBetween(deliveryDate, now)

	state := WindowState{DaysElapsed: elapsed}
	if elapsed < 0 {
		return state
	}
	state.Delivered = true
	if elapsed > AdjustmentWindowDays {
		return state
	}
	state.Open = true
	state.DaysRemaining = AdjustmentWindowDays - elapsed
	return state
}

// ReturnEligibility объединяет окно корректировок с остатком возвращаемого
// количества позиции. requested — сумма количеств по неотклонённым заявкам.
func ReturnEligibility(deliveryDate, now time.Time, lineQty, requested int32) Eligibility {
	window := AdjustmentWindow(deliveryDate, now)
	if !window.Delivered {
		return Eligibility{Reason: ErrNotDelivered}
	}
	if !window.Open {
		return Eligibility{Reason: ErrWindowClosed}
	}

	returnable := lineQty - requested
	if returnable < 0 {
		returnable = 0
	}
	if returnable == 0 {
		return Eligibility{DaysRemaining: window.DaysRemaining, Reason: ErrNothingReturnable}
	}

	return Eligibility{
		Eligible:      true,
		DaysRemaining: window.DaysRemaining,
		Returnable:    returnable,
	}
}

// ExchangeEligibility проверяет только окно: обмен не ограничен
// остатком возвращаемого количества.
func ExchangeEligibility(deliveryDate, now time.Time) Eligibility {
	window := AdjustmentWindow(deliveryDate, now)
	if !window.Delivered {
		return Eligibility{Reason: ErrNotDelivered}
	}
	if !window.Open {
		return Eligibility{Reason: ErrWindowClosed}
	}
	return Eligibility{Eligible: true, DaysRemaining: window.DaysRemaining}
}

// daysBetween возвращает количество календарных дней от from до to,
// игнорируя время суток и часовой сдвиг внутри дня.
func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.UTC().Date()
	ty, tm, td := to.UTC().Date()
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}
