package tests

import (
	"fmt"
	"net/http"
	"testing"
)

func farmerInfo(name, phone, password string) registerInfo {
	return registerInfo{
		Name:     name,
		Phone:    phone,
		Village:  "Kondapur",
		Mandal:   "Serilingampally",
		District: "Rangareddy",
		UserType: "farmer",
		Language: "te",
		Password: password,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	for i := 0; i < 3; i++ {
		phone := fmt.Sprintf("98765432%02d", i)

		client := env.newClient()
		user, err := client.register(farmerInfo("Ravi Kumar", phone, "ab1"))
		if err != nil {
			t.Fatal(err)
		}
		if user.Location != "Kondapur, Serilingampally, Rangareddy" || user.UserType != "farmer" || user.PreferredLanguage != "te" {
			t.Fatalf("invalid user %+v", user)
		}

		if _, err := env.newClient().register(farmerInfo("Ravi Kumar", phone, "ab1")); err == nil {
			t.Fatal("duplicate phone should fail")
		}

		// Registration starts a session.
		info, err := client.info()
		if err != nil {
			t.Fatal(err)
		}
		if info.Id != user.Id || info.Phone != phone {
			t.Fatalf("invalid info %+v", info)
		}

		if err := client.logout(); err != nil {
			t.Fatal(err)
		}
		if _, err := client.info(); err == nil {
			t.Fatal("info should fail after logout")
		}

		if _, err := client.login(phone, "zz9"); err == nil {
			t.Fatal("login should fail with wrong password")
		}
		if _, err := client.login("1111111111", "ab1"); err == nil {
			t.Fatal("login should fail with unknown phone")
		}

		if _, err := client.login(phone, "ab1"); err != nil {
			t.Fatal(err)
		}
		if _, err := client.info(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	env := setupTestEnv(t)

	cases := []struct {
		info    registerInfo
		message string
	}{
		{info: farmerInfo("Ravi Kumar", "9876543210", "abcd"), message: "Password must be exactly 3 alphanumeric characters"},
		{info: farmerInfo("Ravi Kumar", "9876543210", "a!1"), message: "Password must be exactly 3 alphanumeric characters"},
		{info: farmerInfo("Ravi Kumar", "98765", "ab1"), message: "Phone must be 10 digits"},
		{info: farmerInfo("Ravi 2", "9876543210", "ab1"), message: "Name must contain only letters"},
		{info: farmerInfo("", "9876543210", "ab1"), message: "All fields are required"},
	}

	for _, tc := range cases {
		var res status
		code, err := env.newClient().Post("/register").Json(tc.info).Do(&res)
		if err != nil {
			t.Fatal(err)
		}
		if code != http.StatusBadRequest || res.Success || res.Message != tc.message {
			t.Fatalf("expected 400 %q, got %d %+v", tc.message, code, res)
		}
	}
}

func TestLoginValidation(t *testing.T) {
	env := setupTestEnv(t)

	var res status
	code, err := env.newClient().Post("/login").Json(map[string]string{"phone": "12ab", "password": "ab1"}).Do(&res)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusBadRequest || res.Message != "Invalid mobile number format" {
		t.Fatalf("unexpected response %d %+v", code, res)
	}

	code, err = env.newClient().Post("/login").Do(&res)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusBadRequest || res.Message != "No data provided" {
		t.Fatalf("unexpected response %d %+v", code, res)
	}
}

func TestUserInfoRequiresSession(t *testing.T) {
	env := setupTestEnv(t)

	var res status
	code, err := env.newClient().Get("/user").Do(&res)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusUnauthorized || res.Success {
		t.Fatalf("unexpected response %d %+v", code, res)
	}
}

func TestUpdateUser(t *testing.T) {
	env := setupTestEnv(t)

	ravi := env.newUser(t, "Ravi Kumar", "9876543210")
	env.newUser(t, "Lakshmi Devi", "9876543211")

	update := map[string]string{
		"name": "Ravi K", "email": "Ravi@Farm.in", "phone": "9876543210", "location": "Kondapur",
	}
	var res status
	code, err := ravi.Put("/user").Json(update).Do(&res)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusOK {
		t.Fatalf("update failed %d %+v", code, res)
	}

	info, err := ravi.info()
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "Ravi K" || info.Location != "Kondapur" {
		t.Fatalf("update not applied %+v", info)
	}

	update["phone"] = "9876543211"
	code, err = ravi.Put("/user").Json(update).Do(&res)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusBadRequest || res.Message != "Mobile number already registered" {
		t.Fatalf("expected phone conflict, got %d %+v", code, res)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := setupTestEnv(t)

	var res status
	code, err := env.newClient().Get("/does-not-exist").Do(&res)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusNotFound || res.Success {
		t.Fatalf("unexpected response %d %+v", code, res)
	}

	code, err = env.newClient().Get("/health").Do(&res)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusOK || !res.Success {
		t.Fatalf("unexpected health response %d %+v", code, res)
	}
}
