package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/satswap/satswap/api/apierr"
	"github.com/satswap/satswap/build"
)

const (
	// Header is the name of the header we check for authentication details
	Header = "Authorization"
	// userIdVariable is the Gin variable we store the authenticated user ID
	// as
	userIdVariable = "user-id"
	// claimsVariable is the Gin variable we store the verified JWT claims as
	claimsVariable = "jwt-claims"

	bearerPrefix = "Bearer "
)

// TokenDuration is how long a JWT is valid after login
const TokenDuration = 5 * time.Hour

var log = build.AddSubLogger("AUTH")

var (
	ErrPrivateKeyIsNotInArgs = errors.New("private key not present in args")
	ErrInvalidKeyType        = errors.New("key is not a RSA key")
	ErrJwtKeyHasNotBeenSet   = errors.New("JWT public key is nil! You need to call SetJwtPrivateKey before using this package")
	errUnexpectedSigningAlg  = errors.New("unexpected JWT signing algorithm")
)

// keys used to sign JWTs
var (
	jwtPrivateKey *rsa.PrivateKey
	jwtPublicKey  *rsa.PublicKey
)

// SetRawJwtPrivateKey takes in a PEM encoded RSA private key, and set the JWT signing
// key used in this package to it. Password may be empty.
func SetRawJwtPrivateKey(key, password []byte) (err error) {
	privPem, _ := pem.Decode(key)
	if privPem == nil {
		return errors.New("could not decode PEM key")
	}
	if privPem.Type != "RSA PRIVATE KEY" {
		return ErrInvalidKeyType
	}

	var privPemBytes []byte
	if len(password) == 0 {
		privPemBytes = privPem.Bytes
	} else {
		//nolint:staticcheck // legacy encrypted PEM is what our deploy tooling produces
		privPemBytes, err = x509.DecryptPEMBlock(privPem, password)
		if err != nil {
			return fmt.Errorf("unable to decode PEM block: %w", err)
		}
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(privPemBytes)
	if err != nil {
		return err
	}

	SetJwtPrivateKey(privateKey)
	return nil
}

// SetJwtPrivateKey takes in a RSA private key, and set the JWT signing
// key used in this package to it.
func SetJwtPrivateKey(key *rsa.PrivateKey) {
	jwtPrivateKey, jwtPublicKey = key, &key.PublicKey
}

// Claims is the common form for our JWTs. Id (jti) is unique per token, so
// a single token can be revoked.
type Claims struct {
	Username string `json:"username"`
	UserID   int    `json:"user_id"`
	jwt.StandardClaims
}

// RequireAuthenticated generates a middleware that authenticates that the
// user supplies a valid, unrevoked Bearer JWT in their authorization header.
// It also inserts the user ID associated with the authenticated user as a
// request variable that can be retrieved later with GetUserID.
func RequireAuthenticated(revoker Revoker) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(Header)
		if header == "" {
			apierr.Public(c, apierr.ErrNotAuthenticated)
			return
		}

		claims, err := parseBearerJwt(header)
		if err != nil {
			rejectJwt(c, err)
			return
		}

		revoked, err := revoker.IsRevoked(c.Request.Context(), claims.Id)
		if err != nil {
			log.WithError(err).Error("Could not check if JWT is revoked")
			apierr.Handle(c, err)
			return
		}
		if revoked {
			log.WithField("userId", claims.UserID).Info("Rejecting revoked JWT")
			apierr.Public(c, apierr.ErrRevokedJwt)
			return
		}

		c.Set(userIdVariable, claims.UserID)
		c.Set(claimsVariable, claims)
	}
}

// rejectJwt responds to the request with an error fitting for why the JWT
// didn't validate
func rejectJwt(c *gin.Context, err error) {
	var validationError *jwt.ValidationError
	if errors.As(err, &validationError) {
		switch {
		case validationError.Errors&jwt.ValidationErrorMalformed != 0:
			apierr.Public(c, apierr.ErrMalformedJwt)
			return
		case validationError.Errors&jwt.ValidationErrorSignatureInvalid != 0,
			validationError.Errors&jwt.ValidationErrorUnverifiable != 0:
			apierr.Public(c, apierr.ErrInvalidJwtSignature)
			return
		case validationError.Errors&jwt.ValidationErrorExpired != 0:
			apierr.Public(c, apierr.ErrExpiredJwt)
			return
		case validationError.Errors&(jwt.ValidationErrorIssuedAt|jwt.ValidationErrorNotValidYet) != 0:
			apierr.Public(c, apierr.ErrJwtNotValidYet)
			return
		}
	}

	log.WithError(err).Info("Got unexpected error when parsing JWT")
	apierr.Public(c, apierr.ErrMalformedJwt)
}

func parseBearerJwtWithKey(tokenString string, publicKey *rsa.PublicKey) (*Claims, error) {
	// a malicious actor will just end up with an invalid JWT if anything
	// other than Bearer is passed as the first 7 characters
	if !strings.HasPrefix(tokenString, bearerPrefix) {
		return nil, jwt.NewValidationError("malformed JWT", jwt.ValidationErrorMalformed)
	}
	tokenString = strings.TrimPrefix(tokenString, bearerPrefix)

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodRS512 {
				return nil, errUnexpectedSigningAlg
			}
			return publicKey, nil
		})
	if err != nil {
		log.WithError(err).Debug("Parsing JWT failed")
		return nil, err
	}

	if !token.Valid || claims.Id == "" {
		return nil, jwt.NewValidationError("invalid JWT", jwt.ValidationErrorClaimsInvalid)
	}

	return claims, nil
}

// parseBearerJwt parses a string representation of a JWT and validates
// it is signed by us. It returns the extracted claims. If anything goes
// wrong, an error with a descriptive reason is returned.
func parseBearerJwt(tokenString string) (*Claims, error) {
	if jwtPublicKey == nil {
		log.Panic(ErrJwtKeyHasNotBeenSet)
	}
	return parseBearerJwtWithKey(tokenString, jwtPublicKey)
}

type createJwtArgs struct {
	username   string
	id         int
	privateKey *rsa.PrivateKey
	now        func() time.Time
}

func createJwt(args createJwtArgs) (string, error) {
	if args.now == nil {
		args.now = time.Now
	}

	if args.privateKey == nil {
		return "", ErrPrivateKeyIsNotInArgs
	}

	now := args.now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS512,
		&Claims{
			Username: args.username,
			UserID:   args.id,
			StandardClaims: jwt.StandardClaims{
				Id:        uuid.NewString(),
				ExpiresAt: now.Add(TokenDuration).Unix(),
				IssuedAt:  now.Unix(),
			},
		},
	)

	tokenString, err := token.SignedString(args.privateKey)
	if err != nil {
		log.WithError(err).Error("Signing JWT failed")
		return "", err
	}

	return bearerPrefix + tokenString, nil
}

// CreateJwt creates a new JWT for the given user, valid for TokenDuration
// and signed with our secret key. It returns the string representation of
// the token, ready to be used as an Authorization header.
func CreateJwt(username string, id int) (string, error) {
	if jwtPrivateKey == nil {
		log.Panic(ErrJwtKeyHasNotBeenSet)
	}

	return createJwt(createJwtArgs{
		username:   username,
		id:         id,
		privateKey: jwtPrivateKey,
		now:        time.Now,
	})
}

// GetUserID retrieves the ID of the authenticated user. This is set by the
// authentication middleware, so this method can safely be called by all
// endpoints behind it. If the ID is missing the request is rejected, and no
// further action is needed by the caller.
func GetUserID(c *gin.Context) (int, bool) {
	id, exists := c.Get(userIdVariable)
	if !exists {
		apierr.Handle(c, errors.New("user ID is not set in request, the authentication middleware did not run"))
		return 0, false
	}
	idInt, ok := id.(int)
	if !ok {
		apierr.Handle(c, fmt.Errorf("user ID was %T, not an int", id))
		return 0, false
	}
	return idInt, true
}

// Logout revokes the JWT the request was authenticated with, until it would
// have expired anyway
func Logout(ctx context.Context, c *gin.Context, revoker Revoker) error {
	maybeClaims, exists := c.Get(claimsVariable)
	if !exists {
		return errors.New("no JWT claims in request, the authentication middleware did not run")
	}
	claims, ok := maybeClaims.(*Claims)
	if !ok {
		return fmt.Errorf("JWT claims were %T, not *Claims", maybeClaims)
	}

	until := time.Unix(claims.ExpiresAt, 0)
	if err := revoker.Revoke(ctx, claims.Id, until); err != nil {
		return err
	}
	log.WithField("userId", claims.UserID).Info("Logged out")
	return nil
}
