package otp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lead-otp-gateway/internal/domain"
	"github.com/lead-otp-gateway/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSender struct{ mock.Mock }

func (m *mockSender) SendTemplate(ctx context.Context, to domain.PhoneKey, tmpl domain.Template) error {
	return m.Called(ctx, to, tmpl).Error(0)
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) Issue(ctx context.Context, key domain.PhoneKey) (*domain.OTPRecord, error) {
	args := m.Called(ctx, key)
	if r, _ := args.Get(0).(*domain.OTPRecord); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockLedger) Peek(ctx context.Context, key domain.PhoneKey) (*domain.OTPRecord, error) {
	args := m.Called(ctx, key)
	if r, _ := args.Get(0).(*domain.OTPRecord); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockLedger) Consume(ctx context.Context, key domain.PhoneKey, code string) (domain.ConsumeResult, error) {
	args := m.Called(ctx, key, code)
	return args.Get(0).(domain.ConsumeResult), args.Error(1)
}

type failingVerified struct{}

func (failingVerified) MarkVerified(context.Context, domain.PhoneKey) error { return errors.New("down") }
func (failingVerified) IsVerified(context.Context, domain.PhoneKey) (bool, error) {
	return false, errors.New("down")
}

// --- builder ---

var testCfg = Config{
	OTPTemplate:     "otp_verification",
	UnlockTemplate:  "chat_unlocked",
	TemplateLang:    "en",
	DeliveryTimeout: time.Second,
	ChatNumber:      "919999999999",
	RedirectBaseURL: "https://wa.me/",
	RedirectText:    "Hello I am verified",
}

func newService(t *testing.T, sender Sender, cfg Config) (*Service, *memory.Ledger, *memory.VerifiedStore) {
	t.Helper()
	ledger := memory.NewLedger(5 * time.Minute)
	verified := memory.NewVerifiedStore()
	return NewService(ledger, verified, sender, cfg), ledger, verified
}

// capture returns the code passed to the OTP template.
func capture(code *string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		*code = args.Get(2).(domain.Template).BodyValues[0]
	}
}

func isOTPTemplate(tmpl domain.Template) bool { return tmpl.Name == "otp_verification" }
func isUnlockTemplate(tmpl domain.Template) bool { return tmpl.Name == "chat_unlocked" }

// --- RequestCode ---

func TestRequestCode_InvalidPhone_NoLedgerEntry(t *testing.T) {
	sender := &mockSender{}
	svc, ledger, _ := newService(t, sender, testCfg)

	for _, raw := range []string{"1234567890", "", "98765", "abc"} {
		err := svc.RequestCode(context.Background(), raw)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidPhone)
		assert.ErrorIs(t, err, domain.ErrBadRequest)
	}
	assert.Equal(t, 0, ledger.Len())
	sender.AssertNotCalled(t, "SendTemplate", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestCode_HappyPath_SendsTemplate(t *testing.T) {
	sender := &mockSender{}
	var code string
	sender.On("SendTemplate", mock.Anything, domain.PhoneKey("9876543210"), mock.MatchedBy(isOTPTemplate)).
		Run(capture(&code)).Return(nil).Once()
	svc, ledger, _ := newService(t, sender, testCfg)

	require.NoError(t, svc.RequestCode(context.Background(), "+91 98765 43210"))

	rec, err := ledger.Peek(context.Background(), "9876543210")
	require.NoError(t, err)
	assert.Equal(t, rec.Code, code)
	sender.AssertExpectations(t)
}

func TestRequestCode_TemplateCarriesButtonValue(t *testing.T) {
	sender := &mockSender{}
	var tmpl domain.Template
	sender.On("SendTemplate", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { tmpl = args.Get(2).(domain.Template) }).Return(nil)
	svc, _, _ := newService(t, sender, testCfg)

	require.NoError(t, svc.RequestCode(context.Background(), "9876543210"))
	assert.Equal(t, "en", tmpl.Language)
	require.Len(t, tmpl.ButtonValues, 1)
	assert.Equal(t, tmpl.BodyValues, tmpl.ButtonValues[0])
}

func TestRequestCode_DeliveryFailed_RecordStaysLive(t *testing.T) {
	sender := &mockSender{}
	sender.On("SendTemplate", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("provider 500"))
	svc, ledger, _ := newService(t, sender, testCfg)

	err := svc.RequestCode(context.Background(), "9876543210")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)

	_, err = ledger.Peek(context.Background(), "9876543210")
	assert.NoError(t, err)
}

func TestRequestCode_LedgerError(t *testing.T) {
	ledger := &mockLedger{}
	ledger.On("Issue", mock.Anything, domain.PhoneKey("9876543210")).Return(nil, errors.New("redis down"))
	svc := NewService(ledger, memory.NewVerifiedStore(), &mockSender{}, testCfg)

	err := svc.RequestCode(context.Background(), "9876543210")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrDeliveryFailed)
}

func TestRequestCode_DeliveryRunsUnderTimeout(t *testing.T) {
	sender := &mockSender{}
	sender.On("SendTemplate", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			_, ok := args.Get(0).(context.Context).Deadline()
			assert.True(t, ok)
		}).Return(nil)
	svc, _, _ := newService(t, sender, testCfg)
	require.NoError(t, svc.RequestCode(context.Background(), "9876543210"))
}

// --- ConfirmCode ---

func TestConfirmCode_Scenario_VerifyThenNotFound(t *testing.T) {
	sender := &mockSender{}
	var code string
	sender.On("SendTemplate", mock.Anything, mock.Anything, mock.MatchedBy(isOTPTemplate)).Run(capture(&code)).Return(nil)
	sender.On("SendTemplate", mock.Anything, domain.PhoneKey("9876543210"), mock.MatchedBy(isUnlockTemplate)).Return(nil).Once()
	svc, _, verified := newService(t, sender, testCfg)
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "9876543210"))

	conf, err := svc.ConfirmCode(ctx, "9876543210", code, domain.Profile{})
	require.NoError(t, err)
	assert.True(t, conf.Verified)
	assert.Equal(t, "https://wa.me/919999999999?text=Hello%20I%20am%20verified", conf.RedirectURL)

	ok, err := verified.IsVerified(ctx, "9876543210")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.ConfirmCode(ctx, "9876543210", code, domain.Profile{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	svc.Wait()
	sender.AssertExpectations(t)
}

func TestConfirmCode_PrefixedPhoneMatchesNationalKey(t *testing.T) {
	sender := &mockSender{}
	var code string
	sender.On("SendTemplate", mock.Anything, mock.Anything, mock.MatchedBy(isOTPTemplate)).Run(capture(&code)).Return(nil)
	svc, _, _ := newService(t, sender, Config{OTPTemplate: "otp_verification", RedirectBaseURL: "https://wa.me"})
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "9876543210"))
	conf, err := svc.ConfirmCode(ctx, "+919876543210", code, domain.Profile{})
	require.NoError(t, err)
	assert.Equal(t, domain.PhoneKey("9876543210"), conf.Phone)
	assert.Equal(t, "https://wa.me", conf.RedirectURL)
}

func TestConfirmCode_Mismatch_DoesNotVerify(t *testing.T) {
	sender := &mockSender{}
	var code string
	sender.On("SendTemplate", mock.Anything, mock.Anything, mock.MatchedBy(isOTPTemplate)).Run(capture(&code)).Return(nil)
	svc, _, verified := newService(t, sender, testCfg)
	ctx := context.Background()
	require.NoError(t, svc.RequestCode(ctx, "9876543210"))

	_, err := svc.ConfirmCode(ctx, "9876543210", "000000", domain.Profile{})
	assert.ErrorIs(t, err, domain.ErrMismatch)

	ok, _ := verified.IsVerified(ctx, "9876543210")
	assert.False(t, ok)
}

func TestConfirmCode_EmptyPhone_NotFound(t *testing.T) {
	svc, _, _ := newService(t, &mockSender{}, testCfg)
	_, err := svc.ConfirmCode(context.Background(), "", "123456", domain.Profile{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConfirmCode_NoRecord_NotFound(t *testing.T) {
	svc, _, _ := newService(t, &mockSender{}, testCfg)
	_, err := svc.ConfirmCode(context.Background(), "9876543210", "123456", domain.Profile{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConfirmCode_UnlockNoticeFailure_DoesNotFail(t *testing.T) {
	sender := &mockSender{}
	var code string
	sender.On("SendTemplate", mock.Anything, mock.Anything, mock.MatchedBy(isOTPTemplate)).Run(capture(&code)).Return(nil)
	sender.On("SendTemplate", mock.Anything, mock.Anything, mock.MatchedBy(isUnlockTemplate)).Return(errors.New("provider down"))
	svc, _, verified := newService(t, sender, testCfg)
	ctx := context.Background()
	require.NoError(t, svc.RequestCode(ctx, "9876543210"))

	conf, err := svc.ConfirmCode(ctx, "9876543210", code, domain.Profile{})
	require.NoError(t, err)
	assert.True(t, conf.Verified)
	svc.Wait()

	ok, _ := verified.IsVerified(ctx, "9876543210")
	assert.True(t, ok)
}

func TestConfirmCode_UnlockDisabled_NoSecondSend(t *testing.T) {
	sender := &mockSender{}
	var code string
	sender.On("SendTemplate", mock.Anything, mock.Anything, mock.MatchedBy(isOTPTemplate)).Run(capture(&code)).Return(nil).Once()
	cfg := testCfg
	cfg.UnlockTemplate = ""
	svc, _, _ := newService(t, sender, cfg)
	ctx := context.Background()
	require.NoError(t, svc.RequestCode(ctx, "9876543210"))

	_, err := svc.ConfirmCode(ctx, "9876543210", code, domain.Profile{})
	require.NoError(t, err)
	svc.Wait()
	sender.AssertNumberOfCalls(t, "SendTemplate", 1)
}

func TestConfirmCode_VerifiedStoreError(t *testing.T) {
	ledger := &mockLedger{}
	ledger.On("Consume", mock.Anything, domain.PhoneKey("9876543210"), "123456").Return(domain.ConsumeSuccess, nil)
	svc := NewService(ledger, failingVerified{}, &mockSender{}, testCfg)

	_, err := svc.ConfirmCode(context.Background(), "9876543210", "123456", domain.Profile{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestConfirmCode_RedirectWithProfilePlaceholders(t *testing.T) {
	ledger := &mockLedger{}
	ledger.On("Consume", mock.Anything, domain.PhoneKey("9876543210"), "123456").Return(domain.ConsumeSuccess, nil)
	cfg := testCfg
	cfg.UnlockTemplate = ""
	cfg.RedirectText = "Hi, I am {name} from {city} & verified"
	svc := NewService(ledger, memory.NewVerifiedStore(), &mockSender{}, cfg)

	conf, err := svc.ConfirmCode(context.Background(), "9876543210", "123456", domain.Profile{Name: "Asha", City: "Pune"})
	require.NoError(t, err)
	assert.Equal(t, "https://wa.me/919999999999?text=Hi%2C%20I%20am%20Asha%20from%20Pune%20%26%20verified", conf.RedirectURL)
}

func TestConfirmCode_ConcurrentSingleSuccess(t *testing.T) {
	sender := &mockSender{}
	var code string
	sender.On("SendTemplate", mock.Anything, mock.Anything, mock.MatchedBy(isOTPTemplate)).Run(capture(&code)).Return(nil)
	sender.On("SendTemplate", mock.Anything, mock.Anything, mock.MatchedBy(isUnlockTemplate)).Return(nil)
	svc, _, _ := newService(t, sender, testCfg)
	ctx := context.Background()
	require.NoError(t, svc.RequestCode(ctx, "9876543210"))

	const n = 64
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ConfirmCode(ctx, "9876543210", code, domain.Profile{}); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	svc.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestIsVerified(t *testing.T) {
	svc, _, verified := newService(t, &mockSender{}, testCfg)
	ctx := context.Background()
	require.NoError(t, verified.MarkVerified(ctx, "9876543210"))

	ok, err := svc.IsVerified(ctx, "919876543210")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.IsVerified(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidPhone)
}
