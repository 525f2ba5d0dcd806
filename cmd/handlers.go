package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func (p *serviceContext) productsHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	s := searchContext{}
	s.init(p, &cl)

	cl.logRequest()
	resp := s.handleProductsRequest()
	cl.logResponse(resp)

	if resp.err != nil {
		c.JSON(resp.status, gin.H{"error": resp.err.Error()})
		return
	}

	c.JSON(resp.status, resp.data)
}

func (p *serviceContext) productFacetsHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	s := searchContext{}
	s.init(p, &cl)

	cl.logRequest()
	resp := s.handleFacetsRequest()
	cl.logResponse(resp)

	if resp.err != nil {
		c.JSON(resp.status, gin.H{"error": resp.err.Error()})
		return
	}

	c.JSON(resp.status, resp.data)
}

func (p *serviceContext) productHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	s := searchContext{}
	s.init(p, &cl)

	cl.logRequest()
	resp := s.handleProductRequest()
	cl.logResponse(resp)

	if resp.err != nil {
		c.JSON(resp.status, gin.H{"error": resp.err.Error()})
		return
	}

	c.JSON(resp.status, resp.data)
}

func (p *serviceContext) favoritesHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	cl.logRequest()

	// an unauthenticated client simply has no favorites
	if cl.isAuthenticated() == false {
		c.JSON(http.StatusOK, gin.H{"favorites": []string{}})
		return
	}

	favorites, err := p.listFavorites(c.Request.Context(), cl.userID)
	if err != nil {
		cl.err("favorites query failed: %s", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": cl.localize("FavoritesListError")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"favorites": favorites})
}

func (p *serviceContext) favoriteStatusHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	cl.logRequest()

	if cl.isAuthenticated() == false {
		c.JSON(http.StatusOK, gin.H{"favorited": false})
		return
	}

	favorited, err := p.isFavorited(c.Request.Context(), cl.userID, c.Param("id"))
	if err != nil {
		cl.err("favorite status query failed: %s", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": cl.localize("FavoritesListError")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"favorited": favorited})
}

func (p *serviceContext) favoriteAddHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	cl.logRequest()

	if cl.isAuthenticated() == false {
		c.JSON(http.StatusUnauthorized, gin.H{"error": cl.localize("Unauthorized")})
		return
	}

	var req struct {
		ProductID string `json:"productId"`
	}

	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": cl.localize("ProductIDRequired")})
		return
	}

	if err := p.addFavorite(c.Request.Context(), cl.userID, req.ProductID); err != nil {
		cl.err("favorite add failed: %s", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": cl.localize("FavoriteAddError")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (p *serviceContext) favoriteRemoveHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	cl.logRequest()

	if cl.isAuthenticated() == false {
		c.JSON(http.StatusUnauthorized, gin.H{"error": cl.localize("Unauthorized")})
		return
	}

	productID := c.Query("productId")
	if productID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": cl.localize("ProductIDRequired")})
		return
	}

	if err := p.removeFavorite(c.Request.Context(), cl.userID, productID); err != nil {
		cl.err("favorite remove failed: %s", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": cl.localize("FavoriteRemoveError")})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (p *serviceContext) sessionCreateHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	cl.logRequest()

	token, err := getBearerToken(c.GetHeader("Authorization"))
	if err != nil {
		cl.err("session creation failed: %s", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": cl.localize("MissingToken")})
		return
	}

	userID, err := p.verifySessionToken(token)
	if err != nil {
		cl.err("identity token is invalid: %s", err.Error())
		c.JSON(http.StatusUnauthorized, gin.H{"error": cl.localize("InvalidToken")})
		return
	}

	maxAge := p.config.Service.Session.ExpireDays * 24 * 60 * 60

	session, err := p.mintSessionToken(userID, time.Duration(maxAge)*time.Second)
	if err != nil {
		cl.err("session minting failed: %s", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": cl.localize("SessionError")})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(p.config.Service.Session.CookieName, session, maxAge, "/", "", false, true)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (p *serviceContext) sessionDeleteHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	cl.logRequest()

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(p.config.Service.Session.CookieName, "", -1, "/", "", false, true)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (p *serviceContext) ignoreHandler(c *gin.Context) {
}

func (p *serviceContext) versionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, p.version)
}

func (p *serviceContext) healthCheckHandler(c *gin.Context) {
	cl := clientContext{}
	cl.init(p, c)

	s := searchContext{}
	s.init(p, &cl)

	ping := s.handlePingRequest()

	type hcResp struct {
		Healthy bool   `json:"healthy"`
		Message string `json:"message,omitempty"`
	}

	hcMongo := hcResp{Healthy: true}

	hcStatus := http.StatusOK
	if ping.err != nil {
		hcMongo = hcResp{Healthy: false, Message: ping.err.Error()}
		hcStatus = http.StatusInternalServerError
	}

	c.JSON(hcStatus, gin.H{"mongo": hcMongo})
}

func getBearerToken(authorization string) (string, error) {
	components := strings.Split(strings.Join(strings.Fields(authorization), " "), " ")

	// must have two components, the first of which is "Bearer", and the second a non-empty token
	if len(components) != 2 || components[0] != "Bearer" || components[1] == "" {
		return "", fmt.Errorf("invalid Authorization header: [%s]", authorization)
	}

	token := components[1]

	if token == "undefined" {
		return "", errors.New("bearer token is undefined")
	}

	return token, nil
}

func (p *serviceContext) mintSessionToken(userID string, expiresIn time.Duration) (string, error) {
	now := time.Now()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(p.jwtKey)
}

func (p *serviceContext) verifySessionToken(tokenStr string) (string, error) {
	claims := jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok == false {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return p.jwtKey, nil
	})

	if err != nil {
		return "", err
	}

	if claims.Subject == "" {
		return "", errors.New("token carries no subject")
	}

	return claims.Subject, nil
}

// sessionHandler recovers the user id from the session cookie or a bearer
// token, when present.  it never rejects; handlers that require an
// authenticated user check for themselves.
func (p *serviceContext) sessionHandler(c *gin.Context) {
	tokenStr := ""

	if cookie, err := c.Cookie(p.config.Service.Session.CookieName); err == nil && cookie != "" {
		tokenStr = cookie
	} else if bearer, err := getBearerToken(c.GetHeader("Authorization")); err == nil {
		tokenStr = bearer
	}

	if tokenStr == "" {
		return
	}

	userID, err := p.verifySessionToken(tokenStr)
	if err != nil {
		log.Printf("session verification failed: %s", err.Error())
		return
	}

	c.Set("userID", userID)
}
