package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pesa-invest/pesa_invest/internal/account"
	"github.com/pesa-invest/pesa_invest/internal/notification"
)

type testNotifier struct {
	last notification.Message
	sent int
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.last = msg
	n.sent++
	return nil
}

func testConfig() Config {
	return Config{
		MinAmount:       25_000,
		BonusMultiplier: 1.10,
		DelayMin:        0,
		DelayMax:        0,
	}
}

func newEngine(t *testing.T, decider Decider) (*Service, *account.Service, *testNotifier) {
	t.Helper()
	ledger := account.NewService(account.NewMemoryRepository())
	notifier := &testNotifier{}
	svc := NewService(NewMemoryRepository(), ledger, decider, notifier, testConfig())
	return svc, ledger, notifier
}

func approve() Decider { return DeciderFunc(func() bool { return true }) }
func reject() Decider  { return DeciderFunc(func() bool { return false }) }

func TestCreateEnforcesMinimumAmount(t *testing.T) {
	svc, ledger, _ := newEngine(t, approve())
	ctx := context.Background()
	ledger.Create(ctx, "+254711000001", "Asha")

	if _, err := svc.Create(ctx, CreateInput{AccountPhone: "+254711000001", PayTo: "merchant-x", Amount: 24_999}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for 24999, got %v", err)
	}

	p, err := svc.Create(ctx, CreateInput{AccountPhone: "+254711000001", PayTo: "merchant-x", Amount: 25_000})
	if err != nil {
		t.Fatalf("create at minimum failed: %v", err)
	}
	if p.Status != StatusPending {
		t.Fatalf("expected PENDING, got %s", p.Status)
	}
}

func TestCreateUnknownAccount(t *testing.T) {
	svc, _, _ := newEngine(t, approve())

	_, err := svc.Create(context.Background(), CreateInput{AccountPhone: "+254799999999", PayTo: "x", Amount: 30_000})
	if !errors.Is(err, account.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestResolveSuccessCreditsLedger(t *testing.T) {
	svc, ledger, notifier := newEngine(t, approve())
	ctx := context.Background()
	ledger.Create(ctx, "+254711000002", "Brian")
	ledger.Deposit(ctx, "+254711000002", 50_000)

	p, err := svc.Create(ctx, CreateInput{AccountPhone: "+254711000002", PayTo: "x", Amount: 50_000})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Resolve(ctx, p.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	res, err := svc.Status(ctx, p.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", res.Status)
	}
	if res.Note == "" {
		t.Fatal("expected confirmation note on success")
	}

	acct, _ := ledger.View(ctx, "+254711000002")
	if acct.Balance != 105_000 {
		t.Fatalf("expected balance 105000, got %d", acct.Balance)
	}
	invest := acct.Transactions[len(acct.Transactions)-1]
	if invest.Kind != account.KindInvest || invest.Amount != 55_000 || invest.Principal != 50_000 || invest.Bonus != 5_000 {
		t.Fatalf("unexpected invest transaction: %+v", invest)
	}
	if notifier.sent != 1 || notifier.last.Kind != notification.KindSettlement {
		t.Fatalf("expected one settlement notification, got %+v", notifier.last)
	}
}

func TestResolveFailureLeavesLedgerUntouched(t *testing.T) {
	svc, ledger, notifier := newEngine(t, reject())
	ctx := context.Background()
	ledger.Create(ctx, "+254711000003", "Carol")
	ledger.Deposit(ctx, "+254711000003", 50_000)

	p, _ := svc.Create(ctx, CreateInput{AccountPhone: "+254711000003", PayTo: "x", Amount: 50_000})

	if err := svc.Resolve(ctx, p.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	res, _ := svc.Status(ctx, p.ID)
	if res.Status != StatusFailed {
		t.Fatalf("expected FAILED, got %s", res.Status)
	}
	if res.Note != "" {
		t.Fatalf("expected no note on failure, got %q", res.Note)
	}

	acct, _ := ledger.View(ctx, "+254711000003")
	if acct.Balance != 50_000 {
		t.Fatalf("balance mutated on failed settlement: %d", acct.Balance)
	}
	if len(acct.Transactions) != 1 {
		t.Fatalf("expected only the deposit in history, got %d entries", len(acct.Transactions))
	}
	if notifier.sent != 0 {
		t.Fatal("expected no notification on failed settlement")
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	svc, ledger, _ := newEngine(t, approve())
	ctx := context.Background()
	ledger.Create(ctx, "+254711000004", "Didi")

	p, _ := svc.Create(ctx, CreateInput{AccountPhone: "+254711000004", PayTo: "x", Amount: 30_000})

	if err := svc.Resolve(ctx, p.ID); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if err := svc.Resolve(ctx, p.ID); err != nil {
		t.Fatalf("second resolve should be a no-op: %v", err)
	}

	acct, _ := ledger.View(ctx, "+254711000004")
	if len(acct.Transactions) != 1 {
		t.Fatalf("expected exactly one invest credit, got %d", len(acct.Transactions))
	}
}

func TestCancelPendingPayment(t *testing.T) {
	svc, ledger, _ := newEngine(t, approve())
	ctx := context.Background()
	ledger.Create(ctx, "+254711000005", "Esi")

	p, _ := svc.Create(ctx, CreateInput{AccountPhone: "+254711000005", PayTo: "x", Amount: 30_000})

	if err := svc.Cancel(ctx, p.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	res, _ := svc.Status(ctx, p.ID)
	if res.Status != StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", res.Status)
	}
}

func TestCancelledPaymentIsNotSettled(t *testing.T) {
	svc, ledger, _ := newEngine(t, approve())
	ctx := context.Background()
	ledger.Create(ctx, "+254711000006", "Femi")

	p, _ := svc.Create(ctx, CreateInput{AccountPhone: "+254711000006", PayTo: "x", Amount: 30_000})
	if err := svc.Cancel(ctx, p.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// The settlement task firing later must be a no-op.
	if err := svc.Resolve(ctx, p.ID); err != nil {
		t.Fatalf("resolve after cancel: %v", err)
	}

	res, _ := svc.Status(ctx, p.ID)
	if res.Status != StatusCancelled {
		t.Fatalf("cancelled payment changed status to %s", res.Status)
	}

	acct, _ := ledger.View(ctx, "+254711000006")
	if acct.Balance != 0 || len(acct.Transactions) != 0 {
		t.Fatalf("ledger mutated for cancelled payment: %+v", acct)
	}
}

func TestDoubleCancel(t *testing.T) {
	svc, ledger, _ := newEngine(t, approve())
	ctx := context.Background()
	ledger.Create(ctx, "+254711000007", "Gina")

	p, _ := svc.Create(ctx, CreateInput{AccountPhone: "+254711000007", PayTo: "x", Amount: 30_000})
	svc.Cancel(ctx, p.ID)

	if err := svc.Cancel(ctx, p.ID); !errors.Is(err, ErrCannotCancel) {
		t.Fatalf("expected cannot cancel, got %v", err)
	}
}

func TestCancelResolvedPayment(t *testing.T) {
	svc, ledger, _ := newEngine(t, approve())
	ctx := context.Background()
	ledger.Create(ctx, "+254711000008", "Hawa")

	p, _ := svc.Create(ctx, CreateInput{AccountPhone: "+254711000008", PayTo: "x", Amount: 30_000})
	svc.Resolve(ctx, p.ID)

	if err := svc.Cancel(ctx, p.ID); !errors.Is(err, ErrCannotCancel) {
		t.Fatalf("expected cannot cancel for resolved payment, got %v", err)
	}
}

func TestStatusUnknownPayment(t *testing.T) {
	svc, _, _ := newEngine(t, approve())

	if _, err := svc.Status(context.Background(), "no-such-payment"); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected payment not found, got %v", err)
	}
	if err := svc.Cancel(context.Background(), "no-such-payment"); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected payment not found, got %v", err)
	}
}

type failingLedgerRepository struct {
	account.Repository
	applyErr error
}

func (r *failingLedgerRepository) Apply(ctx context.Context, phone string, newBalance int64, tx account.Transaction) error {
	if r.applyErr != nil {
		return r.applyErr
	}
	return r.Repository.Apply(ctx, phone, newBalance, tx)
}

func TestResolveCreditFailureKeepsPaymentPending(t *testing.T) {
	ledgerRepo := &failingLedgerRepository{Repository: account.NewMemoryRepository(), applyErr: errors.New("ledger storage unavailable")}
	ledger := account.NewService(ledgerRepo)
	svc := NewService(NewMemoryRepository(), ledger, approve(), nil, testConfig())
	ctx := context.Background()
	ledger.Create(ctx, "+254711000010", "Juma")

	p, err := svc.Create(ctx, CreateInput{AccountPhone: "+254711000010", PayTo: "x", Amount: 40_000})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Resolve(ctx, p.ID); !errors.Is(err, ledgerRepo.applyErr) {
		t.Fatalf("expected ledger storage error, got %v", err)
	}
	res, _ := svc.Status(ctx, p.ID)
	if res.Status != StatusPending {
		t.Fatalf("payment left PENDING state on failed credit: %s", res.Status)
	}

	// Storage recovers; the next poll settles the payment with a single credit.
	ledgerRepo.applyErr = nil
	if err := svc.Resolve(ctx, p.ID); err != nil {
		t.Fatalf("resolve after recovery: %v", err)
	}
	res, _ = svc.Status(ctx, p.ID)
	if res.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS after recovery, got %s", res.Status)
	}
	acct, _ := ledger.View(ctx, "+254711000010")
	if acct.Balance != 44_000 || len(acct.Transactions) != 1 {
		t.Fatalf("expected one 44000 credit, got balance %d with %d entries", acct.Balance, len(acct.Transactions))
	}
}

type failingStatusRepository struct {
	Repository
	statusErr error
	failures  int
}

func (r *failingStatusRepository) UpdateStatus(ctx context.Context, id, status string) error {
	if r.failures > 0 {
		r.failures--
		return r.statusErr
	}
	return r.Repository.UpdateStatus(ctx, id, status)
}

func TestResolveStatusWriteFailureDoesNotCreditTwice(t *testing.T) {
	repo := &failingStatusRepository{Repository: NewMemoryRepository(), statusErr: errors.New("payment storage unavailable"), failures: 1}
	ledger := account.NewService(account.NewMemoryRepository())
	svc := NewService(repo, ledger, approve(), nil, testConfig())
	ctx := context.Background()
	ledger.Create(ctx, "+254711000011", "Kito")

	p, _ := svc.Create(ctx, CreateInput{AccountPhone: "+254711000011", PayTo: "x", Amount: 40_000})

	if err := svc.Resolve(ctx, p.ID); !errors.Is(err, repo.statusErr) {
		t.Fatalf("expected status write error, got %v", err)
	}
	acct, _ := ledger.View(ctx, "+254711000011")
	if acct.Balance != 44_000 {
		t.Fatalf("expected credit to have landed, balance %d", acct.Balance)
	}
	res, _ := svc.Status(ctx, p.ID)
	if res.Status != StatusPending {
		t.Fatalf("expected payment still PENDING after failed status write, got %s", res.Status)
	}

	// The credit landed, so the payment is settled in all but status.
	if err := svc.Cancel(ctx, p.ID); !errors.Is(err, ErrCannotCancel) {
		t.Fatalf("expected cannot cancel while credit is on record, got %v", err)
	}

	if err := svc.Resolve(ctx, p.ID); err != nil {
		t.Fatalf("retry resolve: %v", err)
	}
	res, _ = svc.Status(ctx, p.ID)
	if res.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS after retry, got %s", res.Status)
	}
	acct, _ = ledger.View(ctx, "+254711000011")
	if acct.Balance != 44_000 || len(acct.Transactions) != 1 {
		t.Fatalf("retry credited again: balance %d with %d entries", acct.Balance, len(acct.Transactions))
	}
}

func TestConcurrentCancelAndResolve(t *testing.T) {
	for i := 0; i < 25; i++ {
		svc, ledger, _ := newEngine(t, approve())
		ctx := context.Background()
		ledger.Create(ctx, "+254711000012", "Leila")

		p, _ := svc.Create(ctx, CreateInput{AccountPhone: "+254711000012", PayTo: "x", Amount: 30_000})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			svc.Cancel(ctx, p.ID)
		}()
		go func() {
			defer wg.Done()
			if err := svc.Resolve(ctx, p.ID); err != nil {
				t.Errorf("resolve: %v", err)
			}
		}()
		wg.Wait()

		res, _ := svc.Status(ctx, p.ID)
		acct, _ := ledger.View(ctx, "+254711000012")
		switch res.Status {
		case StatusCancelled:
			if acct.Balance != 0 || len(acct.Transactions) != 0 {
				t.Fatalf("ledger credited for cancelled payment: %+v", acct)
			}
		case StatusSuccess:
			if acct.Balance != 33_000 || len(acct.Transactions) != 1 {
				t.Fatalf("expected exactly one 33000 credit, got %+v", acct)
			}
		default:
			t.Fatalf("payment stuck in non-terminal state %s", res.Status)
		}
	}
}

func TestSettlementDelayWithinWindow(t *testing.T) {
	ledger := account.NewService(account.NewMemoryRepository())
	cfg := testConfig()
	cfg.DelayMin = 9 * time.Second
	cfg.DelayMax = 12 * time.Second
	svc := NewService(NewMemoryRepository(), ledger, approve(), nil, cfg)

	ctx := context.Background()
	ledger.Create(ctx, "+254711000009", "Ines")

	for i := 0; i < 20; i++ {
		p, err := svc.Create(ctx, CreateInput{AccountPhone: "+254711000009", PayTo: "x", Amount: 30_000})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		delay := p.SettleAt.Sub(p.CreatedAt)
		if delay < cfg.DelayMin || delay > cfg.DelayMax {
			t.Fatalf("settle delay %v outside [%v, %v]", delay, cfg.DelayMin, cfg.DelayMax)
		}
	}
}
