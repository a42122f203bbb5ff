package bank

import "time"

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, Bishkek)
}

// DemoLedger returns a ledger populated with a handful of customers and a
// short transaction history. User 1 (Бакыт) has two accounts.
func DemoLedger() *Ledger {
	l := NewLedger()
	l.AddUser(User{ID: 1, Name: "Бакыт"},
		Account{ID: 101, Type: "checking", Balance: Som(48250)},
		Account{ID: 102, Type: "savings", Balance: Som(120000)},
	)
	l.AddUser(User{ID: 2, Name: "Айзада"}, Account{ID: 201, Type: "checking", Balance: Som(15300.50)})
	l.AddUser(User{ID: 3, Name: "Нурлан"}, Account{ID: 301, Type: "checking", Balance: Som(72000)})
	l.AddUser(User{ID: 4, Name: "Айгүл"}, Account{ID: 401, Type: "checking", Balance: Som(9800)})
	l.AddUser(User{ID: 5, Name: "Эрмек"})

	for _, tx := range []Transaction{
		{From: 0, To: 101, Type: TxDeposit, Amount: Som(60000), Timestamp: at(2025, time.May, 2, 10, 15)},
		{From: 101, To: 201, Type: TxTransfer, Amount: Som(2500), Timestamp: at(2025, time.May, 5, 18, 40)},
		{From: 301, To: 101, Type: TxTransfer, Amount: Som(12000), Timestamp: at(2025, time.May, 9, 9, 5)},
		{From: 101, To: 401, Type: TxTransfer, Amount: Som(1800), Timestamp: at(2025, time.May, 14, 13, 30)},
		{From: 101, To: 0, Type: TxWithdrawal, Amount: Som(5000), Timestamp: at(2025, time.May, 18, 20, 0)},
		{From: 101, To: 301, Type: TxTransfer, Amount: Som(3200), Timestamp: at(2025, time.May, 21, 11, 45)},
		{From: 201, To: 101, Type: TxTransfer, Amount: Som(700), Timestamp: at(2025, time.May, 25, 16, 20)},
		{From: 101, To: 201, Type: TxTransfer, Amount: Som(950), Timestamp: at(2025, time.June, 1, 8, 10)},
	} {
		l.Record(tx)
	}
	return l
}
