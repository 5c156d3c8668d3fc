package validators_test

import (
	"testing"

	"firstbit/storage-api/validators"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestEmailValidator(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, validators.EmailValidator(""), validators.ErrEmailEmpty)
	require.ErrorIs(t, validators.EmailValidator("not-an-email"), validators.ErrEmailInvalid)
	require.NoError(t, validators.EmailValidator("ivan@1cbit.ru"))
}

func TestCompanyEmailValidator(t *testing.T) {
	viper.Set("auth.allowed_domains", []string{"1cbit.ru", "abt.ru"})

	require.NoError(t, validators.CompanyEmailValidator("ivan@1cbit.ru"))
	require.NoError(t, validators.CompanyEmailValidator("ivan@abt.ru"))

	// Domain matching is case-insensitive
	require.NoError(t, validators.CompanyEmailValidator("Ivan@1CBIT.RU"))

	require.ErrorIs(t, validators.CompanyEmailValidator("ivan@gmail.com"), validators.ErrEmailForbidden)
	require.ErrorIs(t, validators.CompanyEmailValidator("ivan@1cbit.ru.evil.com"), validators.ErrEmailForbidden)
}
